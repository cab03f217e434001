package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/freekieb7/storefront/multipart"
	"github.com/freekieb7/storefront/session"
)

// RequestContext is the per-request state handed to every handler. It is
// created by the Server for one request and never shared.
type RequestContext struct {
	Request  *http.Request
	Response Response

	// Route is the matched route, nil before routing.
	Route  *Route
	Params map[string]string
	Query  map[string]string

	// JSON holds a decoded application/json body.
	JSON any
	// Form holds a decoded multipart/form-data body.
	Form *multipart.Result

	Session session.Session
	User    any

	cookies map[string]string
}

func NewRequestContext(w http.ResponseWriter, r *http.Request) *RequestContext {
	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	return &RequestContext{
		Request:  r,
		Response: NewResponse(w),
		Params:   make(map[string]string),
		Query:    query,
	}
}

func (ctx *RequestContext) Context() context.Context {
	return ctx.Request.Context()
}

func (ctx *RequestContext) Param(name string) string {
	return ctx.Params[name]
}

func (ctx *RequestContext) Cookie(name string) (string, error) {
	if ctx.cookies == nil {
		ctx.cookies = ParseCookies(ctx.Request.Header.Get("Cookie"))
	}

	value, found := ctx.cookies[name]
	if !found {
		return "", ErrNoCookie
	}

	return value, nil
}

func (ctx *RequestContext) SetCookie(cookie *Cookie) error {
	if err := cookie.Valid(); err != nil {
		return err
	}

	ctx.Response.Header().Add("Set-Cookie", cookie.String())
	return nil
}

// Authenticated reports whether a user was resolved for this request.
func (ctx *RequestContext) Authenticated() bool {
	return ctx.User != nil
}

// CacheKey is the request path followed by the raw query, if any.
func (ctx *RequestContext) CacheKey() string {
	if ctx.Request.URL.RawQuery == "" {
		return ctx.Request.URL.Path
	}
	return ctx.Request.URL.Path + "?" + ctx.Request.URL.RawQuery
}

func (ctx *RequestContext) SendHTML(status int, html string) error {
	return ctx.send(status, "text/html; charset=utf-8", []byte(html))
}

func (ctx *RequestContext) SendText(status int, text string) error {
	return ctx.send(status, "text/plain; charset=utf-8", []byte(text))
}

func (ctx *RequestContext) SendJSON(status int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return ctx.send(status, "application/json", data)
}

func (ctx *RequestContext) SendBytes(status int, contentType string, data []byte) error {
	return ctx.send(status, contentType, data)
}

func (ctx *RequestContext) Redirect(status int, location string) error {
	ctx.Response.Header().Set("Location", location)
	ctx.Response.WriteHeader(status)
	return ctx.Response.End(nil)
}

func (ctx *RequestContext) send(status int, contentType string, body []byte) error {
	if ctx.Response.Finished() {
		return ErrResponseFinished
	}

	ctx.Response.Header().Set("Content-Type", contentType)
	ctx.Response.WriteHeader(status)
	return ctx.Response.End(body)
}
