package audiostore

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var _ Store = (*Local)(nil)

// Local writes clips to a directory and serves them over HTTP. The webhook
// server mounts [Local.Handler] at MountPath.
type Local struct {
	root    string
	baseURL string
	ttl     time.Duration
}

// MountPath is where the webhook server exposes local clips.
const MountPath = "/audio/"

// NewLocal creates a Local store rooted at dir. baseURL is the server's
// public origin, for example "https://bridge.example.com".
func NewLocal(dir, baseURL string, ttl time.Duration) (*Local, error) {
	if baseURL == "" {
		return nil, errors.New("audiostore: local store needs a public base url")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Local{root: abs, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl}, nil
}

// Put writes data to a new file and returns its public URL.
func (l *Local) Put(_ context.Context, data []byte, contentType string) (Object, error) {
	key := newKey(contentType)
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, &StorageError{Backend: "local", Key: key, Err: err}
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Object{}, &StorageError{Backend: "local", Key: key, Err: err}
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return Object{}, &StorageError{Backend: "local", Key: key, Err: err}
	}
	return Object{Key: key, URL: l.baseURL + MountPath + key, TTL: l.ttl}, nil
}

// Handler serves stored clips. Mount it with http.StripPrefix(MountPath, ...).
func (l *Local) Handler() http.Handler {
	files := http.FileServer(http.Dir(l.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || strings.HasSuffix(r.URL.Path, ".tmp") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// Sweep removes clips older than the TTL and reports how many were deleted.
func (l *Local) Sweep(now time.Time) (int, error) {
	n := 0
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > l.ttl {
			if os.Remove(path) == nil {
				n++
			}
		}
		return nil
	})
	return n, err
}
