// Package media delegates binary asset storage to an external provider.
// The API only ever keeps a public URL and an opaque public id per asset.
package media

import (
	"context"
	"errors"
	"io"
	"strings"

	"devsnippet/internal/models"
)

var (
	// ErrNotConfigured is returned by uploads when no provider is set up.
	ErrNotConfigured = errors.New("media storage is not configured")
	// ErrUnsupportedType rejects uploads that are neither images nor videos.
	ErrUnsupportedType = errors.New("only image and video uploads are supported")
)

// UploadInput is a single file handed to the delegate.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Asset is what the delegate reports back after an upload.
type Asset struct {
	URL          string `json:"url"`
	PublicID     string `json:"publicId"`
	ResourceType string `json:"resourceType"`
}

// Delegate stores and deletes assets on behalf of the API.
type Delegate interface {
	Upload(ctx context.Context, in UploadInput) (*Asset, error)
	Delete(ctx context.Context, ref models.MediaRef) error
}

// ResourceTypeFor maps a MIME type onto the delegate resource type.
func ResourceTypeFor(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return string(models.MediaImage), nil
	case strings.HasPrefix(ct, "video/"):
		return string(models.MediaVideo), nil
	default:
		return "", ErrUnsupportedType
	}
}

// NoopDelegate stands in when storage credentials are absent.
// Deletes succeed silently so content removal never depends on storage.
type NoopDelegate struct{}

func (NoopDelegate) Upload(context.Context, UploadInput) (*Asset, error) {
	return nil, ErrNotConfigured
}

func (NoopDelegate) Delete(context.Context, models.MediaRef) error {
	return nil
}
