package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1712/yamdb/covers/42-dune.webp", "yamdb/covers/42-dune"},
		{"https://res.cloudinary.com/demo/image/upload/covers/x.png", "covers/x"},
		{"https://res.cloudinary.com/demo/image/upload/video/clip.webp", "video/clip"},
		{"https://example.com/static/x.png", ""},
		{"https://res.cloudinary.com/demo/image/upload/v99", ""},
		{"::not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PublicIDFromURL(tt.url), tt.url)
	}
}

func TestNewCloudinaryStorage(t *testing.T) {
	_, err := NewCloudinaryStorage(CloudinaryConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err := NewCloudinaryStorage(CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}
