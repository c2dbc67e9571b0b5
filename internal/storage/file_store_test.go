package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore() (*LocalStore, afero.Fs) {
	mem := afero.NewMemMapFs()
	_ = mem.MkdirAll("/uploads", 0o755)
	fs := afero.NewBasePathFs(mem, "/uploads")
	return NewLocalStore(fs, zap.NewNop()), fs
}

func TestStoreWritesUniqueNames(t *testing.T) {
	store, fs := newTestStore()
	ctx := context.Background()

	first, err := store.Store(ctx, ".png", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := store.Store(ctx, ".png", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(first, ".png"))

	content, err := afero.ReadFile(fs, first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(content))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStoreRemovesPartialFileOnCopyError(t *testing.T) {
	store, fs := newTestStore()

	_, err := store.Store(context.Background(), ".jpg", io.MultiReader(strings.NewReader("abc"), failingReader{}))
	require.Error(t, err)

	entries, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	store, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Store(ctx, ".jpg", strings.NewReader("abc"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, fs := newTestStore()
	ctx := context.Background()

	name, err := store.Store(ctx, ".jpg", strings.NewReader("abc"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, name))
	exists, err := afero.Exists(fs, name)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, store.Delete(ctx, name))
}

func TestDeleteRejectsPaths(t *testing.T) {
	store, _ := newTestStore()

	for _, name := range []string{"", "..", "../etc/passwd", "a/b.jpg", `a\b.jpg`} {
		err := store.Delete(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestHandlerServesStoredFiles(t *testing.T) {
	store, _ := newTestStore()

	name, err := store.Store(context.Background(), ".png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	srv := http.StripPrefix("/uploads/", store.Handler())
	req := httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
}
