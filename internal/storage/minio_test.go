package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, object string
	body           string
	opts           minio.PutObjectOptions
	err            error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, object string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	b, _ := io.ReadAll(r)
	f.bucket, f.object, f.body, f.opts = bucket, object, string(b), opts
	return minio.UploadInfo{Bucket: bucket, Key: object}, f.err
}

func TestUploader_Upload(t *testing.T) {
	fp := &fakePutter{}
	u := NewWithClient(fp, "images", "https://cdn.example.com/images/")

	url, err := u.Upload(context.Background(), "products/1/a.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/images/products/1/a.png", url)
	assert.Equal(t, "images", fp.bucket)
	assert.Equal(t, "products/1/a.png", fp.object)
	assert.Equal(t, "png", fp.body)
	assert.Equal(t, "image/png", fp.opts.ContentType)
}

func TestUploader_UploadError(t *testing.T) {
	u := NewWithClient(&fakePutter{err: errors.New("denied")}, "images", "http://minio:9000/images")
	_, err := u.Upload(context.Background(), "k", strings.NewReader("x"), 1, "image/png")
	assert.Error(t, err)
}

func TestNew_DefaultPublicURL(t *testing.T) {
	u, mc, err := New(Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b", Bucket: "images"})
	require.NoError(t, err)
	require.NotNil(t, mc)
	assert.Equal(t, "http://minio:9000/images", u.publicURL)
}
