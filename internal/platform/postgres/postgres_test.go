package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"dials/internal/platform/config"
)

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
