package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStorage(dir, "http://localhost:8080/")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "2025-03-10_09-00-00_abc.pdf", bytes.NewReader([]byte("pdf")), 3, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/2025-03-10_09-00-00_abc.pdf", url)

	data, err := os.ReadFile(filepath.Join(dir, "2025-03-10_09-00-00_abc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))

	_, err = store.Put(context.Background(), "2025-03-10_09-00-00_abc.pdf", bytes.NewReader(nil), 0, "")
	assert.Error(t, err, "existing files are never overwritten")

	url, err = store.Put(context.Background(), "../../escape.txt", bytes.NewReader([]byte("x")), 1, "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/escape.txt", url)
	assert.FileExists(t, filepath.Join(dir, "escape.txt"))
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Storage(t *testing.T) {
	client := &fakePutter{}
	store := NewS3Storage(client, "admissions-docs", "https://cdn.example.com/")

	url, err := store.Put(context.Background(), "a.pdf", bytes.NewReader([]byte("pdf")), 3, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/uploads/a.pdf", url)
	assert.Equal(t, "admissions-docs", aws.ToString(client.input.Bucket))
	assert.Equal(t, "uploads/a.pdf", aws.ToString(client.input.Key))
	assert.Equal(t, "application/pdf", aws.ToString(client.input.ContentType))
	assert.Equal(t, int64(3), aws.ToInt64(client.input.ContentLength))
	assert.Equal(t, "pdf", string(client.body))

	client.err = errors.New("denied")
	_, err = store.Put(context.Background(), "b.pdf", bytes.NewReader(nil), 0, "")
	assert.Error(t, err)
}

func TestS3StorageDefaultURL(t *testing.T) {
	store := NewS3Storage(&fakePutter{}, "bucket", "")
	url, err := store.Put(context.Background(), "a.png", bytes.NewReader(nil), 0, "")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/uploads/a.png", url)
}
