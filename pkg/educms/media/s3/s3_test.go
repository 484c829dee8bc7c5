package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
)

func newTestBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	cfg.Bucket = "media"
	cfg.AccessKeyID = "test-key"
	cfg.SecretAccessKey = "test-secret"
	cfg.Endpoint = "http://localhost:9000"
	cfg.UsePathStyle = true
	backend, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return backend
}

func TestS3Backend_Configuration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("Defaults", func(t *testing.T) {
		backend := newTestBackend(t, Config{Prefix: "/uploads/"})
		assert.Equal(t, "us-east-1", backend.config.Region)
		assert.Equal(t, time.Hour, backend.presignDuration)
		assert.Equal(t, "uploads/2024/01/a.png", backend.key("2024/01/a.png"))
	})
}

func TestS3Backend_PresignURL(t *testing.T) {
	backend := newTestBackend(t, Config{Prefix: "cms", PresignDuration: 60})

	url, err := backend.PresignURL(context.Background(), "2024/01/a.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/media/cms/2024/01/a.png?"), url)
	assert.Contains(t, url, "X-Amz-Expires=60")

	_, err = backend.PresignURL(context.Background(), "../secret")
	assert.ErrorIs(t, err, educms.ErrInvalidMediaPath)
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &types.NoSuchKey{}, true},
		{"not found", fmt.Errorf("head: %w", &types.NotFound{}), true},
		{"generic api error", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"no such bucket", &types.NoSuchBucket{}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}
