package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/astroguard/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(&config.StorageConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half configured credentials return error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(&config.StorageConfig{Bucket: "detections", AccessKeyID: "key"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be set together")
	})

	t.Run("relative endpoint returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(&config.StorageConfig{Bucket: "detections", Endpoint: "minio:9000"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid storage endpoint")
	})
}

func TestS3ObjectStorage_PublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{
			name: "explicit public base url",
			cfg:  config.StorageConfig{Bucket: "detections", PublicBaseURL: "https://proj.supabase.co/storage/v1/object/public/detections/"},
			want: "https://proj.supabase.co/storage/v1/object/public/detections/img/a_1.jpg",
		},
		{
			name: "path style endpoint",
			cfg:  config.StorageConfig{Bucket: "detections", Endpoint: "http://localhost:9000", UsePathStyle: true},
			want: "http://localhost:9000/detections/img/a_1.jpg",
		},
		{
			name: "virtual hosted endpoint",
			cfg:  config.StorageConfig{Bucket: "detections", Endpoint: "https://storage.example.com"},
			want: "https://detections.storage.example.com/img/a_1.jpg",
		},
		{
			name: "aws default",
			cfg:  config.StorageConfig{Bucket: "detections", Region: "eu-west-1"},
			want: "https://detections.s3.eu-west-1.amazonaws.com/img/a_1.jpg",
		},
		{
			name: "key prefix",
			cfg:  config.StorageConfig{Bucket: "detections", Endpoint: "http://localhost:9000", UsePathStyle: true, KeyPrefix: "/uploads/"},
			want: "http://localhost:9000/detections/uploads/img/a_1.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.AccessKeyID, cfg.SecretAccessKey = "key", "secret"
			s, err := NewS3ObjectStorage(&cfg)
			require.NoError(t, err)

			assert.Equal(t, tt.want, s.PublicURL("img/a_1.jpg"))
		})
	}
}

func TestS3ObjectStorage_Upload(t *testing.T) {
	var (
		mu          sync.Mutex
		gotPath     string
		gotType     string
		gotBodySize int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		if r.Method == http.MethodPut {
			gotPath = r.URL.Path
			gotType = r.Header.Get("Content-Type")
			gotBodySize = len(body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s, err := NewS3ObjectStorage(&config.StorageConfig{
		Bucket:          "detections",
		Endpoint:        server.URL,
		UsePathStyle:    true,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	publicURL, err := s.Upload(context.Background(), "img/abc_1700000000000.png", []byte("png-bytes"), "image/png")

	require.NoError(t, err)
	assert.Equal(t, server.URL+"/detections/img/abc_1700000000000.png", publicURL)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/detections/img/abc_1700000000000.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Positive(t, gotBodySize)
	assert.Equal(t, "detections", s.Bucket())
}

func TestS3ObjectStorage_UploadRejectsEmptyKey(t *testing.T) {
	s, err := NewS3ObjectStorage(&config.StorageConfig{Bucket: "detections", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), "", []byte("x"), "image/png")

	assert.Error(t, err)
}
