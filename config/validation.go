package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.HTTP3Port < 0 || c.Server.HTTP3Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.http3_port %d out of range", c.Server.HTTP3Port))
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		problems = append(problems, "server.cert_file and server.key_file must be set together")
	}
	if c.Server.HTTP3Port != 0 && c.Server.CertFile == "" {
		problems = append(problems, "server.http3_port requires server.cert_file and server.key_file")
	}
	if c.Server.MaxBodySize <= 0 {
		problems = append(problems, "server.max_body_size must be positive")
	}

	for key, value := range map[string]string{
		"paths.views":    c.Paths.Views,
		"paths.public":   c.Paths.Public,
		"paths.images":   c.Paths.Images,
		"paths.products": c.Paths.Products,
		"paths.users":    c.Paths.Users,
	} {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" must not be empty")
		}
	}

	if c.Cache.TTL < 0 {
		problems = append(problems, "cache.ttl must not be negative")
	}

	switch c.Upload.Backend {
	case "disk":
	case "s3":
		if c.Upload.S3.Bucket == "" {
			problems = append(problems, "upload.s3.bucket is required for the s3 backend")
		}
		if c.Upload.S3.PublicURL == "" {
			problems = append(problems, "upload.s3.public_url is required for the s3 backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("upload.backend %q is not disk or s3", c.Upload.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}

	if _, err := language.Parse(c.Shop.Locale); err != nil {
		problems = append(problems, fmt.Sprintf("shop.locale %q is not a language tag", c.Shop.Locale))
	}
	if c.Shop.Featured < 0 {
		problems = append(problems, "shop.featured must not be negative")
	}

	if len(problems) == 0 {
		return nil
	}

	slices.Sort(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
