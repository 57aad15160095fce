package session

import (
	json "github.com/goccy/go-json"
)

// Strategy is how a diff reaches the backend.
type Strategy string

const (
	StrategyNone  Strategy = ""
	StrategyPatch Strategy = "PATCH"
	StrategyPut   Strategy = "PUT"
)

// PutThreshold is the PATCH body size above which a full PUT is sent.
const PutThreshold = 40 * 1024

// ChooseStrategy picks PUT when the PATCH body would exceed PutThreshold
// bytes or replace more than one collection, PATCH otherwise, and None for
// an empty diff.
func ChooseStrategy(d Diff) Strategy {
	return chooseStrategy(d, PutThreshold)
}

func chooseStrategy(d Diff, threshold int) Strategy {
	if d.Empty() {
		return StrategyNone
	}
	if d.CollectionsTouched() > 1 || BodySize(d) > threshold {
		return StrategyPut
	}
	return StrategyPatch
}

// BodySize is the serialized size of the diff's PATCH body in bytes.
func BodySize(d Diff) int {
	buf, err := json.Marshal(d.Body())
	if err != nil {
		return 0
	}
	return len(buf)
}
