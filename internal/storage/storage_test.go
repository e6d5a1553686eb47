package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	tempDir := t.TempDir()
	fixed := time.UnixMilli(1718000000123)

	storage, err := NewLocalStorage(tempDir, 1024, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	t.Run("StoreFromURL", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/generated_ads/ad_1.png", r.URL.Path)
			w.Write([]byte("\x89PNG fake"))
		}))
		defer ts.Close()

		ctx := context.Background()
		path, err := storage.StoreFromURL(ctx, ts.URL+"/generated_ads/ad_1.png?v=2")
		require.NoError(t, err)
		assert.Equal(t, "automark_generated_1718000000123.png", filepath.Base(path))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG fake", string(content))

		require.NoError(t, storage.Delete(ctx, path))
	})

	t.Run("StoreFromURL bad status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer ts.Close()

		_, err := storage.StoreFromURL(context.Background(), ts.URL+"/missing.png")
		assert.Error(t, err)
	})

	t.Run("StoreFromURL too large", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(make([]byte, 4096))
		}))
		defer ts.Close()

		_, err := storage.StoreFromURL(context.Background(), ts.URL+"/big.jpg")
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("StoreFromBytes same millisecond", func(t *testing.T) {
		ctx := context.Background()
		first, err := storage.StoreFromBytes(ctx, ".JPG", []byte("a"))
		require.NoError(t, err)
		second, err := storage.StoreFromBytes(ctx, "jpg", []byte("b"))
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		assert.Equal(t, "automark_generated_1718000000123.jpg", filepath.Base(first))

		require.NoError(t, storage.Delete(ctx, first))
		require.NoError(t, storage.Delete(ctx, second))
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()

		path, err := storage.StoreFromBytes(ctx, "png", []byte("test"))
		require.NoError(t, err)

		require.NoError(t, storage.Delete(ctx, path))
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		err = storage.Delete(ctx, filepath.Join(tempDir, "nonexistent.png"))
		assert.Error(t, err)

		err = storage.Delete(ctx, "/etc/passwd")
		assert.Error(t, err)
	})
}

func TestExtFromURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8000/generated_ads/a.png":        "png",
		"http://localhost:8000/generated_ads/a.JPEG?x=1":   "jpeg",
		"http://localhost:8000/generated_ads/noext":        "jpg",
		"http://localhost:8000/generated_ads/a.tar.gz":     "gz",
		"http://localhost:8000/generated_ads/a.weird$ext!": "jpg",
		"::not a url":                                      "jpg",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtFromURL(in), in)
	}
}
