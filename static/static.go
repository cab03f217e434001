// Package static serves files from the public directory under /static/.
package static

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/freekieb7/storefront/filesystem"
)

const (
	DefaultPrefix = "/static/"
	CacheControl  = "public, max-age=31536000"
)

var mimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".txt":  "text/plain",
}

// ContentType maps a file name to its MIME type.
func ContentType(name string) string {
	if contentType, found := mimeTypes[strings.ToLower(filepath.Ext(name))]; found {
		return contentType
	}
	return "application/octet-stream"
}

type preloaded struct {
	content []byte
	modTime time.Time
}

type Server struct {
	root   string
	prefix string
	fs     filesystem.Filesystem
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]preloaded
}

type Option func(*Server)

func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = prefix
	}
}

func WithFilesystem(fs filesystem.Filesystem) Option {
	return func(s *Server) {
		s.fs = fs
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(root string, opts ...Option) *Server {
	s := &Server{
		root:   root,
		prefix: DefaultPrefix,
		fs:     filesystem.NewLocalFileSystem(),
		logger: slog.Default(),
		cache:  make(map[string]preloaded),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Root() string {
	return s.root
}

// Serve answers requests below the prefix and reports whether it did.
// Missing files get a JSON 404, paths escaping the root a JSON 403.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request) (bool, error) {
	if !strings.HasPrefix(r.URL.Path, s.prefix) {
		return false, nil
	}

	rel := strings.TrimPrefix(r.URL.Path, s.prefix)

	path, err := filesystem.Within(s.root, rel)
	if err != nil {
		if errors.Is(err, filesystem.ErrOutsideRoot) {
			return true, sendError(w, http.StatusForbidden, "access denied")
		}
		return true, err
	}

	s.mu.RLock()
	entry, cached := s.cache[filepath.ToSlash(rel)]
	s.mu.RUnlock()

	if cached {
		setHeaders(w, path)
		http.ServeContent(w, r, path, entry.modTime, bytes.NewReader(entry.content))
		return true, nil
	}

	info, err := s.fs.FileMetaData(path)
	if errors.Is(err, filesystem.ErrFileNotFound) || (err == nil && info.IsDir()) {
		return true, sendError(w, http.StatusNotFound, "file not found")
	}
	if err != nil {
		s.logger.Error("reading static file metadata failed", "path", path, "error", err)
		return true, sendError(w, http.StatusInternalServerError, "internal server error")
	}

	file, err := s.fs.Open(path)
	if err != nil {
		s.logger.Error("opening static file failed", "path", path, "error", err)
		return true, sendError(w, http.StatusInternalServerError, "internal server error")
	}
	defer file.Close()

	setHeaders(w, path)
	http.ServeContent(w, r, path, info.ModTime(), file)

	return true, nil
}

// Preload keeps the given files, relative to the root, in memory. Files
// that cannot be read are logged and skipped.
func (s *Server) Preload(files ...string) {
	for _, file := range files {
		path, err := filesystem.Within(s.root, file)
		if err != nil {
			s.logger.Warn("could not preload static file", "file", file, "error", err)
			continue
		}

		info, err := s.fs.FileMetaData(path)
		if err != nil {
			s.logger.Warn("could not preload static file", "file", file, "error", err)
			continue
		}

		content, err := s.fs.ReadFile(path)
		if err != nil {
			s.logger.Warn("could not preload static file", "file", file, "error", err)
			continue
		}

		s.mu.Lock()
		s.cache[filepath.ToSlash(file)] = preloaded{content: content, modTime: info.ModTime()}
		s.mu.Unlock()
	}
}

// Preloaded reports whether file is served from memory.
func (s *Server) Preloaded(file string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := s.cache[filepath.ToSlash(file)]
	return found
}

func setHeaders(w http.ResponseWriter, path string) {
	w.Header().Set("Content-Type", ContentType(path))
	w.Header().Set("Cache-Control", CacheControl)
}

func sendError(w http.ResponseWriter, status int, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(map[string]any{
		"error":  message,
		"status": status,
	})
}

