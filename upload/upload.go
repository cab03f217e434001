// Package upload stores product images.
package upload

import (
	"context"
	"errors"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnsupportedType = errors.New("upload: unsupported file type")
	ErrEmptyFile       = errors.New("upload: empty file")
	ErrTooLarge        = errors.New("upload: file too large")
)

// AllowedTypes are the accepted image content types.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// extensions lists the file extensions stored for each allowed type. The
// first one replaces any extension that does not match.
var extensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/webp": {".webp"},
}

// Store persists an uploaded file and returns the reference the product
// should point at.
type Store interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// Check rejects empty files, oversized files and content types outside
// AllowedTypes. A maxSize of zero disables the size check.
func Check(contentType string, data []byte, maxSize int64) error {
	if !slices.Contains(AllowedTypes, strings.ToLower(contentType)) {
		return ErrUnsupportedType
	}
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return ErrTooLarge
	}
	return nil
}

// SafeName prefixes the base name of filename with the unix time in
// milliseconds. Client supplied directories are discarded and the extension
// is forced to one matching contentType, so a file is always served as the
// image type it was accepted as.
func SafeName(now time.Time, filename, contentType string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		base = "upload"
	}
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, base)

	if allowed, ok := extensions[strings.ToLower(contentType)]; ok {
		ext := path.Ext(base)
		if !slices.Contains(allowed, strings.ToLower(ext)) {
			base = strings.TrimSuffix(base, ext) + allowed[0]
		}
	}

	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + base
}
