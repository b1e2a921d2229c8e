package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fooforms/fooforms/backend/go-services/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	bucket, key, contentType string
	body                     string
	removed                  []string
	err                      error
}

func (f *fakeClient) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	b, _ := io.ReadAll(r)
	f.bucket, f.key, f.contentType, f.body = bucket, key, opts.ContentType, string(b)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (f *fakeClient) PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error) {
	return url.Parse("http://minio.local/" + bucket + "/" + key + "?X-Amz-Expires=" + expires.String())
}

func (f *fakeClient) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, bucket+"/"+key)
	return nil
}

func TestIconStore_PutIcon(t *testing.T) {
	fc := &fakeClient{}
	s := &IconStore{client: fc, bucket: "fooforms"}

	require.NoError(t, s.PutIcon(context.Background(), "icons/abc.png", strings.NewReader("png"), 3, ""))
	require.Equal(t, "fooforms", fc.bucket)
	require.Equal(t, "icons/abc.png", fc.key)
	require.Equal(t, "application/octet-stream", fc.contentType)
	require.Equal(t, "png", fc.body)

	fc.err = errors.New("denied")
	err := s.PutIcon(context.Background(), "icons/abc.png", strings.NewReader("png"), 3, "image/png")
	require.ErrorContains(t, err, "denied")
}

func TestIconStore_PresignedURL(t *testing.T) {
	s := &IconStore{client: &fakeClient{}, bucket: "fooforms"}
	u, err := s.PresignedURL(context.Background(), "icons/abc.png", time.Minute)
	require.NoError(t, err)
	require.Contains(t, u, "/fooforms/icons/abc.png")
}

func TestNewIconStore_RequiresEndpoint(t *testing.T) {
	_, err := NewIconStore(context.Background(), config.MinIOConfig{})
	require.Error(t, err)
}

func TestIconStore_RemoveIcon(t *testing.T) {
	fc := &fakeClient{}
	s := &IconStore{client: fc, bucket: "fooforms"}
	require.NoError(t, s.RemoveIcon(context.Background(), "icons/abc.png"))
	require.Equal(t, []string{"fooforms/icons/abc.png"}, fc.removed)

	fc.err = errors.New("denied")
	require.ErrorContains(t, s.RemoveIcon(context.Background(), "icons/abc.png"), "denied")
}
