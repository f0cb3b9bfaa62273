package diskstorage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/UnendingLoop/DigitRecognizer/internal/model"
	"github.com/stretchr/testify/require"
)

func TestDiskImageStorage_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	strg, err := New(t.TempDir())
	require.NoError(t, err)

	payload := []byte("fake-png-bytes")
	key := "uploads/abc.png"

	require.NoError(t, strg.Put(ctx, key, int64(len(payload)), model.PNG, bytes.NewReader(payload)))

	rc, cType, err := strg.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, payload, got)
	require.Equal(t, model.PNG, cType)

	require.NoError(t, strg.Delete(ctx, key))
	_, _, err = strg.Get(ctx, key)
	require.ErrorIs(t, err, model.ErrUploadNotFound)

	// повторное удаление не ошибка
	require.NoError(t, strg.Delete(ctx, key))
}

func TestDiskImageStorage_Put_Errors(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	strg, err := New(root)
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
		size int64
		r    io.Reader
	}{
		{name: "nil reader", key: "uploads/a.png", size: 1, r: nil},
		{name: "path traversal", key: "../escape.png", size: 3, r: bytes.NewReader([]byte("abc"))},
		{name: "absolute key", key: "/etc/passwd", size: 3, r: bytes.NewReader([]byte("abc"))},
		{name: "empty key", key: "", size: 3, r: bytes.NewReader([]byte("abc"))},
		{name: "size mismatch", key: "uploads/b.png", size: 10, r: bytes.NewReader([]byte("abc"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, strg.Put(ctx, tt.key, tt.size, model.PNG, tt.r))
		})
	}

	// после неудачной записи не остается ни файла, ни временного мусора
	entries, err := os.ReadDir(filepath.Join(root, "uploads"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDiskImageStorage_CanceledContext(t *testing.T) {
	strg, err := New(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, strg.Put(ctx, "uploads/a.png", 1, model.PNG, bytes.NewReader([]byte("a"))), context.Canceled)
}
