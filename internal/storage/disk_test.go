package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStorageRoundTrip(t *testing.T) {
	store, err := NewDiskStorage(t.TempDir(), "http://localhost:5000")
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Save(ctx, "/bvh/p1/walk.bvh", strings.NewReader("HIERARCHY"))
	require.NoError(t, err)
	assert.Equal(t, "bvh/p1/walk.bvh", key)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "HIERARCHY", string(data))

	url, err := store.URL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000/files/bvh/p1/walk.bvh", url)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), ErrObjectNotFound)
}

func TestDiskStorageRejectsTraversal(t *testing.T) {
	store, err := NewDiskStorage(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"", "   ", "../etc/passwd", "bvh/../../x", "/"} {
		_, err := store.Save(context.Background(), key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestDiskStorageHandlerServesFiles(t *testing.T) {
	store, err := NewDiskStorage(t.TempDir(), "")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "avatars/u1/a.glb", strings.NewReader("glTF"))
	require.NoError(t, err)

	handler := store.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/avatars/u1/a.glb", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "glTF", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/avatars/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAllIgnoresMissing(t *testing.T) {
	store := NewMemoryStorage("")
	ctx := context.Background()
	_, err := store.Save(ctx, "a", strings.NewReader("1"))
	require.NoError(t, err)

	require.NoError(t, DeleteAll(ctx, store, []string{"a", "b"}))
	assert.Empty(t, store.Keys())
}
