package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)

	path, err := Create(dir, "Add Order Notes!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260502083000_add_order_notes.sql"), path)

	require.NoError(t, Validate(os.DirFS(dir)))

	_, err = Create(dir, "add order notes", now)
	assert.Error(t, err, "same version must not be overwritten")
}

func TestCreateRejectsEmptySlug(t *testing.T) {
	_, err := Create(t.TempDir(), "  !! ", time.Now())
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"create_orders.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n")},
		},
		"sections swapped": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Validate(fsys))
		})
	}
}
