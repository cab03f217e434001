// Package storefront is the shop application: pages, the JSON API, login and
// the product forms, registered on an http.Router.
package storefront

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/freekieb7/storefront/cache"
	"github.com/freekieb7/storefront/catalog"
	"github.com/freekieb7/storefront/http"
	"github.com/freekieb7/storefront/metrics"
	"github.com/freekieb7/storefront/session"
	"github.com/freekieb7/storefront/session/storage"
	"github.com/freekieb7/storefront/upload"
	"github.com/freekieb7/storefront/view"
)

const (
	DefaultSessionMaxAge = 24 * time.Hour
	DefaultMaxUploadSize = 5 << 20

	// ImageField is the multipart field carrying a product image.
	ImageField = "productImage"
	// ImagePath is where locally stored images are served from.
	ImagePath = "/static/images/"
)

// Shop is what the pages say about the business.
type Shop struct {
	Name        string
	Description string
	Founded     int
	Featured    int
}

type App struct {
	catalog  *catalog.Catalog
	users    *catalog.Users
	views    http.Renderer
	sessions session.Store
	cache    *cache.Store
	uploads  upload.Store
	metrics  *metrics.Metrics
	format   *Formatter
	logger   *slog.Logger
	shop     Shop
	now      func() time.Time

	maxBodySize   int64
	maxUploadSize int64
	secureCookies bool
	sessionMaxAge time.Duration

	interceptor http.Handler
}

type Option func(*App)

func WithSessions(store session.Store) Option {
	return func(app *App) {
		app.sessions = store
	}
}

func WithCache(store *cache.Store) Option {
	return func(app *App) {
		app.cache = store
	}
}

// WithUploads enables the image upload form.
func WithUploads(store upload.Store) Option {
	return func(app *App) {
		app.uploads = store
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(app *App) {
		app.metrics = m
	}
}

func WithFormatter(format *Formatter) Option {
	return func(app *App) {
		app.format = format
	}
}

func WithShop(shop Shop) Option {
	return func(app *App) {
		app.shop = shop
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(app *App) {
		app.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(app *App) {
		app.now = now
	}
}

// WithLimits caps request bodies and single uploaded files.
func WithLimits(maxBodySize, maxUploadSize int64) Option {
	return func(app *App) {
		app.maxBodySize = maxBodySize
		app.maxUploadSize = maxUploadSize
	}
}

func WithCookies(secure bool, maxAge time.Duration) Option {
	return func(app *App) {
		app.secureCookies = secure
		app.sessionMaxAge = maxAge
	}
}

func New(products *catalog.Catalog, users *catalog.Users, views http.Renderer, opts ...Option) *App {
	app := &App{
		catalog:       products,
		users:         users,
		views:         views,
		format:        NewFormatter("en", "$"),
		logger:        slog.Default(),
		shop:          Shop{Name: "Storefront", Featured: 3},
		now:           time.Now,
		maxBodySize:   http.DefaultMaxBodySize,
		maxUploadSize: DefaultMaxUploadSize,
		sessionMaxAge: DefaultSessionMaxAge,
	}
	for _, opt := range opts {
		opt(app)
	}

	if app.sessions == nil {
		app.sessions = storage.NewMemorySessionStore()
	}
	if app.cache == nil {
		app.cache = cache.New()
	}

	app.interceptor = http.Cache(app.cache, http.WithCacheLogger(app.logger))

	return app
}

// Register installs the global middleware and every route on router.
func (app *App) Register(router *http.Router) {
	if app.metrics != nil {
		router.Use(app.metrics.Middleware())
	}
	router.Use(
		http.Timing(app.logger),
		http.Logger(app.logger),
		http.CORS(),
		http.JSONBody(app.maxBodySize),
		http.MultipartBody(app.maxBodySize),
		http.Sessions(app.sessions),
	)

	router.GET("/", app.cached, app.Home)
	router.GET("/products", app.cached, app.Products)
	router.GET("/products/:id", app.cached, app.Product)
	router.GET("/about", app.cached, app.About)
	router.GET("/login", app.cached, app.LoginPage)
	router.GET("/logout", app.Logout)

	router.POST("/products/:id/upload", app.UploadImage)
	router.POST("/products/:id/comments", app.AddComment)

	router.Group("/api", func(api *http.Router) {
		api.GET("/products", app.cached, app.ListProducts)
		api.GET("/products/:id", app.cached, app.ShowProduct)
		api.POST("/login", app.Login)
		api.POST("/logout", app.APILogout)
	})
}

// Cache returns the response cache behind the page routes.
func (app *App) Cache() *cache.Store {
	return app.cache
}

// cached serves guests from the response cache. Signed-in users always get
// a fresh page since the layout shows their name.
func (app *App) cached(ctx *http.RequestContext) (http.Result, error) {
	if ctx.Authenticated() {
		return http.Continue, nil
	}
	return app.interceptor(ctx)
}

// invalidate drops every cached response after the catalog changed.
func (app *App) invalidate(ctx *http.RequestContext, reason string) {
	app.cache.Flush()
	if app.metrics != nil {
		app.metrics.CacheFlushed()
	}
	app.logger.InfoContext(ctx.Context(), "response cache flushed", "reason", reason)
}

func currentUser(ctx *http.RequestContext) (catalog.User, bool) {
	user, ok := ctx.User.(catalog.User)
	return user, ok
}

func productID(ctx *http.RequestContext) (int, bool) {
	id, err := strconv.Atoi(ctx.Param("id"))
	return id, err == nil
}

// imageSource turns a stored image reference into a URL. Bare names live
// under ImagePath.
func imageSource(image string) string {
	switch {
	case image == "":
		return ImagePath + catalog.DefaultImage
	case strings.Contains(image, "://"), strings.HasPrefix(image, "/"):
		return image
	default:
		return ImagePath + image
	}
}

func (app *App) productView(product catalog.Product) view.Data {
	return view.Data{
		"id":           product.ID,
		"name":         product.Name,
		"price":        app.format.Price(product.Price),
		"category":     product.Category,
		"description":  product.Description,
		"image":        imageSource(product.ImageURL),
		"stock":        app.format.Number(product.Stock),
		"inStock":      product.Stock > 0,
		"commentCount": len(product.Comments),
	}
}

func (app *App) productViews(products []catalog.Product) []view.Data {
	views := make([]view.Data, len(products))
	for i, product := range products {
		views[i] = app.productView(product)
	}
	return views
}

func (app *App) commentViews(comments []catalog.Comment) []view.Data {
	views := make([]view.Data, len(comments))
	for i, comment := range comments {
		views[i] = view.Data{
			"author":  comment.Author,
			"name":    comment.Name,
			"rating":  comment.Rating,
			"stars":   strings.Repeat("★", max(0, min(comment.Rating, 5))),
			"comment": comment.Comment,
			"date":    app.format.StoredDate(comment.Date),
		}
	}
	return views
}
