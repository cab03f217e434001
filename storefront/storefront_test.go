package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/freekieb7/storefront/cache"
	"github.com/freekieb7/storefront/catalog"
	"github.com/freekieb7/storefront/filesystem"
	"github.com/freekieb7/storefront/http"
	"github.com/freekieb7/storefront/metrics"
	"github.com/freekieb7/storefront/session"
	"github.com/freekieb7/storefront/session/storage"
	"github.com/freekieb7/storefront/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const productsFixture = `[
  {"id": 1, "name": "Laptop Pro", "price": 1299.99, "category": "laptops", "description": "Fast", "image_url": "", "stock": 3,
   "comments": [{"author": "ana", "name": "Ana", "rating": 5, "comment": "Great", "date": "2024-3-14"}]},
  {"id": 2, "name": "Mouse", "price": 24.5, "category": "accessories", "description": "Small", "image_url": "mouse.png", "stock": 10},
  {"id": 3, "name": "Monitor", "price": 349, "category": "monitors", "description": "Wide", "image_url": "https://cdn.example.com/monitor.png", "stock": 0},
  {"id": 4, "name": "Ultrabook", "price": 999, "category": "laptops", "description": "Light", "image_url": "", "stock": 1}
]`

type fakeUploads struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (f *fakeUploads) Put(_ context.Context, filename, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[filename] = data
	return "uploaded-" + filename, nil
}

type harness struct {
	server   *http.Server
	app      *App
	catalog  *catalog.Catalog
	sessions *storage.MemorySessionStore
	uploads  *fakeUploads
	metrics  *metrics.Metrics
	path     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(productsFixture), 0o644))

	fs := filesystem.NewLocalFileSystem()
	products, err := catalog.Load(path, fs)
	require.NoError(t, err)

	users := catalog.NewUsers(catalog.User{ID: 1, Name: "Ana Demo", Username: "ana", Password: "secret"})
	sessions := storage.NewMemorySessionStore()
	uploads := &fakeUploads{}
	m := metrics.New()

	app := New(products, users, view.New("../views"),
		WithSessions(sessions),
		WithCache(cache.New()),
		WithUploads(uploads),
		WithMetrics(m),
		WithShop(Shop{Name: "Test Shop", Description: "We sell things.", Founded: 2020, Featured: 2}),
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }),
	)

	server := http.NewServer("test")
	server.Views = view.New("../views")
	app.Register(server.Router)

	return &harness{server: server, app: app, catalog: products, sessions: sessions, uploads: uploads, metrics: m, path: path}
}

func (h *harness) do(r *nethttp.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	h.server.ServeHTTP(recorder, r)
	return recorder
}

func (h *harness) get(target string, cookies ...*nethttp.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(nethttp.MethodGet, target, nil)
	for _, cookie := range cookies {
		r.AddCookie(cookie)
	}
	return h.do(r)
}

func (h *harness) login(t *testing.T) *nethttp.Cookie {
	t.Helper()

	r := httptest.NewRequest(nethttp.MethodPost, "/api/login", strings.NewReader(`{"username":"ana","password":"secret"}`))
	r.Header.Set("Content-Type", "application/json")
	recorder := h.do(r)
	require.Equal(t, nethttp.StatusOK, recorder.Code)

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == session.CookieName {
			return cookie
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

type part struct {
	name, filename, contentType, value string
}

func multipartRequest(t *testing.T, target string, parts ...part) *nethttp.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		disposition := fmt.Sprintf(`form-data; name="%s"`, p.name)
		if p.filename != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, p.filename)
		}
		header.Set("Content-Disposition", disposition)
		if p.contentType != "" {
			header.Set("Content-Type", p.contentType)
		}

		w, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.value)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(nethttp.MethodPost, target, &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

func countClass(t *testing.T, document, class string) int {
	t.Helper()

	root, err := html.Parse(strings.NewReader(document))
	require.NoError(t, err)

	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(" "+attr.Val+" ", " "+class+" ") {
					count++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return count
}

func TestHomeShowsFeaturedProducts(t *testing.T) {
	h := newHarness(t)

	recorder := h.get("/")
	require.Equal(t, nethttp.StatusOK, recorder.Code)
	assert.Equal(t, "text/html; charset=utf-8", recorder.Header().Get("Content-Type"))

	body := recorder.Body.String()
	assert.Equal(t, 2, countClass(t, body, "product-card"))
	assert.Contains(t, body, "<title>Welcome to Test Shop | Test Shop</title>")
	assert.Contains(t, body, "$24.50")
	assert.Contains(t, body, `href="/login"`)
	assert.NotContains(t, body, "{{")
}

func TestProductsFilterAndCache(t *testing.T) {
	h := newHarness(t)

	recorder := h.get("/products?category=laptops")
	require.Equal(t, nethttp.StatusOK, recorder.Code)
	assert.Equal(t, 2, countClass(t, recorder.Body.String(), "product-card"))
	assert.Contains(t, recorder.Body.String(), `<option value="laptops" selected>`)
	assert.Equal(t, 1, h.app.Cache().Len())

	again := h.get("/products?category=laptops")
	assert.Equal(t, recorder.Body.String(), again.Body.String())
	assert.Equal(t, 1, h.app.Cache().Len())

	h.get("/products?category=monitors")
	assert.Equal(t, 2, h.app.Cache().Len())
}

func TestProductsEmptyResult(t *testing.T) {
	h := newHarness(t)

	recorder := h.get("/products?max_price=1")
	require.Equal(t, nethttp.StatusOK, recorder.Code)
	assert.Equal(t, 0, countClass(t, recorder.Body.String(), "product-card"))
	assert.Contains(t, recorder.Body.String(), "No products match these filters.")
}

func TestProductDetail(t *testing.T) {
	h := newHarness(t)

	recorder := h.get("/products/1")
	require.Equal(t, nethttp.StatusOK, recorder.Code)

	body := recorder.Body.String()
	assert.Contains(t, body, "<h1>Laptop Pro</h1>")
	assert.Contains(t, body, "/static/images/default.svg")
	assert.Contains(t, body, "★★★★★")
	assert.Contains(t, body, "03/14/2024")
	assert.Equal(t, 1, countClass(t, body, "comment"))
	assert.Equal(t, 0, countClass(t, body, "upload"))

	mouse := h.get("/products/2").Body.String()
	assert.Contains(t, mouse, `src="/static/images/mouse.png"`)

	monitor := h.get("/products/3").Body.String()
	assert.Contains(t, monitor, `src="https://cdn.example.com/monitor.png"`)
}

func TestProductDetailNotFound(t *testing.T) {
	h := newHarness(t)

	for _, target := range []string{"/products/99", "/products/abc"} {
		recorder := h.get(target)
		assert.Equal(t, nethttp.StatusNotFound, recorder.Code, target)
		assert.Contains(t, recorder.Body.String(), "Product not found")
	}
	assert.Equal(t, 0, h.app.Cache().Len())
}

func TestAboutPage(t *testing.T) {
	h := newHarness(t)

	body := h.get("/about").Body.String()
	assert.Contains(t, body, "We sell things.")
	assert.Contains(t, body, "Founded in 2020.")
}

func TestAPIListProducts(t *testing.T) {
	h := newHarness(t)

	recorder := h.get("/api/products?sort=price_asc&limit=2&page=2")
	require.Equal(t, nethttp.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var page catalog.Page
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "Ultrabook", page.Products[0].Name)
	assert.Equal(t, "Laptop Pro", page.Products[1].Name)
}

func TestAPIShowProduct(t *testing.T) {
	h := newHarness(t)

	recorder := h.get("/api/products/2")
	require.Equal(t, nethttp.StatusOK, recorder.Code)

	var product catalog.Product
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &product))
	assert.Equal(t, "Mouse", product.Name)

	missing := h.get("/api/products/42")
	assert.Equal(t, nethttp.StatusNotFound, missing.Code)
	assert.JSONEq(t, `{"error":"product not found"}`, missing.Body.String())
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	cookie := h.login(t)
	assert.True(t, h.sessions.Has(cookie.Value))
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)

	page := h.get("/login", cookie)
	require.Equal(t, nethttp.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "You are signed in as Ana Demo.")
	assert.Equal(t, 0, h.app.Cache().Len())
}

func TestLoginWithForm(t *testing.T) {
	h := newHarness(t)

	recorder := h.do(multipartRequest(t, "/api/login",
		part{name: "username", value: "ana"},
		part{name: "password", value: "secret"},
	))
	assert.Equal(t, nethttp.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"username":"ana"`)
	assert.NotContains(t, recorder.Body.String(), "secret")
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)

	r := httptest.NewRequest(nethttp.MethodPost, "/api/login", strings.NewReader(`{"username":"ana","password":"wrong"}`))
	r.Header.Set("Content-Type", "application/json")
	recorder := h.do(r)
	assert.Equal(t, nethttp.StatusUnauthorized, recorder.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, recorder.Body.String())
	assert.Equal(t, 0, h.sessions.Len())

	r = httptest.NewRequest(nethttp.MethodPost, "/api/login", nil)
	assert.Equal(t, nethttp.StatusBadRequest, h.do(r).Code)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	cookie := h.login(t)

	recorder := h.get("/logout", cookie)
	assert.Equal(t, nethttp.StatusFound, recorder.Code)
	assert.Equal(t, "/login", recorder.Header().Get("Location"))
	assert.Contains(t, recorder.Header().Get("Set-Cookie"), "Max-Age=0")
	assert.False(t, h.sessions.Has(cookie.Value))
}

func TestAPILogout(t *testing.T) {
	h := newHarness(t)
	cookie := h.login(t)

	r := httptest.NewRequest(nethttp.MethodPost, "/api/logout", nil)
	r.AddCookie(cookie)
	recorder := h.do(r)
	assert.Equal(t, nethttp.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"message":"logout successful"}`, recorder.Body.String())
	assert.Equal(t, 0, h.sessions.Len())
}

func TestUploadImage(t *testing.T) {
	h := newHarness(t)

	h.get("/products/2")
	require.Equal(t, 1, h.app.Cache().Len())

	unauthorized := h.do(multipartRequest(t, "/products/2/upload",
		part{name: ImageField, filename: "new.png", contentType: "image/png", value: "PNGDATA"}))
	assert.Equal(t, nethttp.StatusUnauthorized, unauthorized.Code)

	cookie := h.login(t)

	r := multipartRequest(t, "/products/2/upload",
		part{name: ImageField, filename: "new.png", contentType: "image/png", value: "PNGDATA"})
	r.AddCookie(cookie)
	recorder := h.do(r)

	assert.Equal(t, nethttp.StatusFound, recorder.Code)
	assert.Equal(t, "/products/2", recorder.Header().Get("Location"))
	assert.Equal(t, []byte("PNGDATA"), h.uploads.files["new.png"])
	assert.Equal(t, 0, h.app.Cache().Len())

	product, found := h.catalog.Find(2)
	require.True(t, found)
	assert.Equal(t, "uploaded-new.png", product.ImageURL)

	reloaded, err := catalog.Load(h.path, filesystem.NewLocalFileSystem())
	require.NoError(t, err)
	product, _ = reloaded.Find(2)
	assert.Equal(t, "uploaded-new.png", product.ImageURL)

	families, err := h.metrics.Registry().Gather()
	require.NoError(t, err)
	flushes := 0.0
	for _, family := range families {
		if family.GetName() == "storefront_cache_flushes_total" {
			flushes = family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, flushes)
}

func TestUploadImageRejects(t *testing.T) {
	h := newHarness(t)
	cookie := h.login(t)

	tests := []struct {
		name   string
		target string
		parts  []part
		status int
	}{
		{"unknown product", "/products/99/upload", []part{{name: ImageField, filename: "a.png", contentType: "image/png", value: "x"}}, nethttp.StatusNotFound},
		{"no file", "/products/2/upload", []part{{name: "other", value: "x"}}, nethttp.StatusBadRequest},
		{"wrong type", "/products/2/upload", []part{{name: ImageField, filename: "a.txt", contentType: "text/plain", value: "x"}}, nethttp.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := multipartRequest(t, tt.target, tt.parts...)
			r.AddCookie(cookie)
			assert.Equal(t, tt.status, h.do(r).Code)
		})
	}
	assert.Empty(t, h.uploads.files)
}

func TestAddComment(t *testing.T) {
	h := newHarness(t)
	cookie := h.login(t)

	r := multipartRequest(t, "/products/2/comments",
		part{name: "name", value: "Ana"},
		part{name: "rating", value: "4"},
		part{name: "comment", value: "Works fine"},
	)
	r.AddCookie(cookie)
	recorder := h.do(r)
	require.Equal(t, nethttp.StatusFound, recorder.Code)

	reloaded, err := catalog.Load(h.path, filesystem.NewLocalFileSystem())
	require.NoError(t, err)
	product, _ := reloaded.Find(2)
	require.Len(t, product.Comments, 1)
	assert.Equal(t, catalog.Comment{Author: "ana", Name: "Ana", Rating: 4, Comment: "Works fine", Date: "2025-06-01"}, product.Comments[0])

	page := h.get("/products/2").Body.String()
	assert.Contains(t, page, "Works fine")
	assert.Contains(t, page, "★★★★")
}

func TestAddCommentValidation(t *testing.T) {
	h := newHarness(t)
	cookie := h.login(t)

	r := multipartRequest(t, "/products/2/comments",
		part{name: "rating", value: "9"},
		part{name: "comment", value: "Hmm"},
	)
	r.AddCookie(cookie)
	recorder := h.do(r)

	assert.Equal(t, nethttp.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "name is required")
	assert.Contains(t, recorder.Body.String(), "rating must be between 1 and 5")

	product, _ := h.catalog.Find(2)
	assert.Empty(t, product.Comments)
}

func TestAddCommentRequiresLogin(t *testing.T) {
	h := newHarness(t)

	recorder := h.do(multipartRequest(t, "/products/2/comments",
		part{name: "name", value: "Ana"},
		part{name: "rating", value: "4"},
		part{name: "comment", value: "Works fine"},
	))
	assert.Equal(t, nethttp.StatusUnauthorized, recorder.Code)
}

func TestRoutesRegistered(t *testing.T) {
	h := newHarness(t)

	var patterns []string
	for _, route := range h.server.Router.Routes() {
		patterns = append(patterns, route.Method+" "+route.Pattern)
	}

	assert.Contains(t, patterns, "GET /api/products/:id")
	assert.Contains(t, patterns, "POST /products/:id/comments")
	assert.Contains(t, patterns, "GET /logout")
}
