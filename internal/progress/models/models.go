package models

import (
	"encoding/json"
	"time"
)

// MaxUserKeyLength bounds the client-chosen user key.
const MaxUserKeyLength = 100

// Progress is one mirrored wizard draft, keyed by (UserID, UserKey). Data is
// the progress document exactly as the client sent it.
type Progress struct {
	UserID    string
	UserKey   string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// SaveProgressRequest accepts the camelCase and snake_case spellings the
// portal has used over time.
type SaveProgressRequest struct {
	UserKey      string          `json:"userKey"`
	UserKeySnake string          `json:"user_key"`
	Progress     json.RawMessage `json:"progress"`
	Data         json.RawMessage `json:"data"`
}

// Key returns the user key, preferring the snake_case spelling.
func (r SaveProgressRequest) Key() string {
	if r.UserKeySnake != "" {
		return r.UserKeySnake
	}
	return r.UserKey
}

// Document returns the progress document, preferring `data`. JSON null
// counts as absent.
func (r SaveProgressRequest) Document() json.RawMessage {
	if present(r.Data) {
		return r.Data
	}
	if present(r.Progress) {
		return r.Progress
	}
	return nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// Response is the portal's {success, message} envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// GetProgressResponse carries a nil Progress when nothing is stored.
type GetProgressResponse struct {
	Success  bool           `json:"success"`
	Progress map[string]any `json:"progress"`
}
