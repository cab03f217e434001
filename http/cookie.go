package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type SameSite int

const (
	SameSiteDefaultMode SameSite = iota + 1
	SameSiteLaxMode
	SameSiteStrictMode
	SameSiteNoneMode
)

var (
	ErrNoCookie      = errors.New("http: named cookie not present")
	ErrInvalidCookie = errors.New("http: invalid cookie")
	ErrCookieTooLong = errors.New("http: cookie value too long")
)

const maxCookieValue = 4096

// Cookie is a Set-Cookie directive.
type Cookie struct {
	Name  string
	Value string

	Path     string
	Domain   string
	Expires  time.Time
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite SameSite
}

// String renders the Set-Cookie header value.
func (c *Cookie) String() string {
	var b strings.Builder

	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}

	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}

	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(http.TimeFormat))
	}

	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	} else if c.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}

	if c.Secure {
		b.WriteString("; Secure")
	}

	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}

	switch c.SameSite {
	case SameSiteLaxMode:
		b.WriteString("; SameSite=Lax")
	case SameSiteStrictMode:
		b.WriteString("; SameSite=Strict")
	case SameSiteNoneMode:
		b.WriteString("; SameSite=None")
	}

	return b.String()
}

// Valid checks the name characters and value size (RFC 6265).
func (c *Cookie) Valid() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCookie)
	}

	for _, r := range c.Name {
		if !isCookieNameChar(r) {
			return fmt.Errorf("%w: character %q in name", ErrInvalidCookie, r)
		}
	}

	if strings.ContainsAny(c.Value, ";\r\n") {
		return fmt.Errorf("%w: value contains a separator", ErrInvalidCookie)
	}

	if len(c.Value) > maxCookieValue {
		return ErrCookieTooLong
	}

	if c.SameSite == SameSiteNoneMode && !c.Secure {
		return fmt.Errorf("%w: SameSite=None requires Secure", ErrInvalidCookie)
	}

	return nil
}

// Expire turns the cookie into a deletion directive.
func (c *Cookie) Expire() {
	c.Value = ""
	c.MaxAge = -1
	c.Expires = time.Time{}
}

// ParseCookies reads the name=value pairs of a Cookie request header.
// Pairs without a name are skipped; later duplicates do not override.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)

	for _, part := range strings.Split(header, ";") {
		name, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if _, seen := cookies[name]; seen {
			continue
		}

		cookies[name] = strings.Trim(strings.TrimSpace(value), `"`)
	}

	return cookies
}

func isCookieNameChar(r rune) bool {
	return r > 0x20 && r < 0x7f && !strings.ContainsRune(`"(),/:;<=>?@[\]{}`, r)
}
