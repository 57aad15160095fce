package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dials/internal/platform/config"
	"dials/internal/platform/logger"
	"dials/internal/progress/store"
)

func TestOpenProgressStore(t *testing.T) {
	ctx := context.Background()

	st, closer, err := openProgressStore(ctx, config.Server{ProgressStore: "memory"}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &store.InMemoryStore{}, st)
	assert.NoError(t, closer.Close())

	_, _, err = openProgressStore(ctx, config.Server{ProgressStore: "mongo"}, logger.Discard())
	assert.ErrorContains(t, err, `unknown PROGRESS_STORE "mongo"`)

	_, _, err = openProgressStore(ctx, config.Server{ProgressStore: "postgres"}, logger.Discard())
	assert.Error(t, err)
}
