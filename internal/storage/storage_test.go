package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopfront/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	bucket  string
	objects map[string]string
	ensured bool
}

func (m *memoryObjects) EnsureBucket(context.Context) error {
	m.ensured = true
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) Bucket() string { return m.bucket }

func TestStorage_DelegatesToBackend(t *testing.T) {
	backend := &memoryObjects{bucket: "images", objects: map[string]string{"products/1.png": "png"}}
	s := NewStorage(backend)
	ctx := context.Background()

	require.NoError(t, s.EnsureBucket(ctx))
	assert.True(t, backend.ensured)
	assert.Equal(t, "images", s.Bucket())

	reader, err := s.Get(ctx, "products/1.png")
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, s.Delete(ctx, "products/1.png"))
	_, err = s.Get(ctx, "products/1.png")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestNew_Disabled(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Backend: "ftp"})
	require.Error(t, err)
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{})
	assert.EqualError(t, err, "minio endpoint is required")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000"})
	assert.EqualError(t, err, "minio access key and secret key are required")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.EqualError(t, err, "minio bucket is required")
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), config.S3Config{Region: "us-east-1"})
	assert.EqualError(t, err, "s3 bucket is required")
}
