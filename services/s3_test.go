package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bucketServer struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (b *bucketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		b.objects[key] = body
		b.types[key] = r.Header.Get("Content-Type")
	case http.MethodGet:
		body, ok := b.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<Error><Code>NoSuchKey</Code></Error>`)
			return
		}
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestPhotoStore(t *testing.T) (*PhotoStore, *bucketServer) {
	t.Helper()
	bucket := &bucketServer{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:           "auto",
		Credentials:      credentials.NewStaticCredentialsProvider("key", "secret", ""),
		EndpointResolver: s3.EndpointResolverFromURL(srv.URL),
		UsePathStyle:     true,
	})
	return NewPhotoStore(client, "closet"), bucket
}

func TestPhotoStoreRoundTrip(t *testing.T) {
	photos, bucket := newTestPhotoStore(t)
	ctx := context.Background()
	content := pngOfSize(t, 8, 8)

	key, err := photos.Upload(ctx, "item-1", content)
	require.NoError(t, err)
	assert.Equal(t, "items/item-1", key)
	assert.Equal(t, "image/png", bucket.types["closet/items/item-1"])

	got, err := photos.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, photos.Delete(ctx, key))
	assert.Empty(t, bucket.objects)
}

func TestPhotoStoreRejectsNonImages(t *testing.T) {
	photos, bucket := newTestPhotoStore(t)
	_, err := photos.Upload(context.Background(), "item-1", []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.Empty(t, bucket.objects)
}

func TestPhotoStorePresign(t *testing.T) {
	photos, _ := newTestPhotoStore(t)
	url, err := photos.PresignGet(context.Background(), "items/item-1")
	require.NoError(t, err)
	assert.Contains(t, url, "/closet/items/item-1")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

type presignCounter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *presignCounter) Upload(ctx context.Context, itemID string, content []byte) (string, error) {
	return PhotoKey(itemID), nil
}

func (p *presignCounter) Download(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("not stored")
}

func (p *presignCounter) Delete(ctx context.Context, key string) error {
	return nil
}

func (p *presignCounter) PresignGet(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return "https://signed.example.com/" + key, p.err
}

func TestURLCacheServiceReusesPresignedURLs(t *testing.T) {
	photos := &presignCounter{}
	urls, err := NewURLCacheService(photos)
	require.NoError(t, err)
	ctx := context.Background()

	url, err := urls.GetReadURL(ctx, "items/a")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/items/a", url)
	time.Sleep(100 * time.Millisecond)

	_, err = urls.GetReadURL(ctx, "items/a")
	require.NoError(t, err)
	assert.Equal(t, 1, photos.calls)

	empty, err := urls.GetReadURL(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 1, photos.calls)
}
