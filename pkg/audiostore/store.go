// Package audiostore publishes synthesized audio at a URL the telephony
// provider can fetch.
package audiostore

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a published clip stays reachable.
const DefaultTTL = time.Hour

// Object is a published clip.
type Object struct {
	Key string
	URL string
	TTL time.Duration
}

// Store publishes audio. Failures are *StorageError.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (Object, error)
}

// StorageError reports a failed upload or URL signing.
type StorageError struct {
	Backend string
	Key     string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("audiostore: %s: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("audiostore: %s: %s: %v", e.Backend, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// newKey returns "speech/<uuid><ext>" with an extension matching
// contentType.
func newKey(contentType string) string {
	return "speech/" + uuid.NewString() + extension(contentType)
}

func extension(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mt {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/aac":
		return ".aac"
	case "audio/flac":
		return ".flac"
	}
	return ".bin"
}
