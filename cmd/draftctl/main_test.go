package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dials/internal/declaration/models"
	"dials/internal/draft/kv"
	"dials/internal/draft/store"
)

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drafts.db")
	backend, err := kv.OpenSQLite(path)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	drafts := store.New(backend)
	drafts.Save(ctx, store.UserStep(models.UserData{FirstName: "Achieng", Surname: "Otieno"}), "12345678")
	drafts.Save(ctx, store.SpouseStep(nil, nil), "87654321")
	drafts.MarkSuppressed(ctx, "87654321")
	return path
}

func runCmd(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), append([]string{"--db", path}, args...), &out, &errOut)
	return out.String(), err
}

func TestList(t *testing.T) {
	path := seed(t)
	out, err := runCmd(t, path, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "12345678\tuser\t")
	assert.Contains(t, out, "87654321\tspouse\t")
	assert.Contains(t, out, "(server copy suppressed)")
}

func TestShow(t *testing.T) {
	path := seed(t)
	out, err := runCmd(t, path, "show", "12345678")
	require.NoError(t, err)
	assert.Contains(t, out, `"lastStep": "user"`)
	assert.Contains(t, out, `"surname": "Otieno"`)

	_, err = runCmd(t, path, "show", "missing")
	assert.EqualError(t, err, `no draft for "missing"`)
}

func TestClear(t *testing.T) {
	path := seed(t)
	out, err := runCmd(t, path, "clear", "12345678")
	require.NoError(t, err)
	assert.Equal(t, "cleared 12345678\n", out)

	out, err = runCmd(t, path, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "12345678")
}

func TestSuppressionMarkers(t *testing.T) {
	path := seed(t)
	out, err := runCmd(t, path, "suppressed")
	require.NoError(t, err)
	assert.Equal(t, "87654321\n", out)

	_, err = runCmd(t, path, "unsuppress", "12345678")
	assert.Error(t, err)

	_, err = runCmd(t, path, "unsuppress", "87654321")
	require.NoError(t, err)
	out, err = runCmd(t, path, "suppressed")
	require.NoError(t, err)
	assert.Equal(t, "no suppression markers\n", out)
}

func TestUsageErrors(t *testing.T) {
	path := seed(t)
	_, err := runCmd(t, path)
	assert.EqualError(t, err, "missing command")

	_, err = runCmd(t, path, "show")
	assert.EqualError(t, err, "show needs exactly one user key")

	_, err = runCmd(t, path, "frobnicate")
	assert.EqualError(t, err, `unknown command "frobnicate"`)
}
