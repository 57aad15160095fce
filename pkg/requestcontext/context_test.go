package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, UserID(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestInjectedValues(t *testing.T) {
	fixed := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	ctx := WithTime(WithRequestID(WithUserID(context.Background(), "42"), "req-1"), fixed)

	assert.Equal(t, "42", UserID(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
