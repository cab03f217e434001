package http

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// Handler is both middleware and route handler.
type Handler func(ctx *RequestContext) (Result, error)

var paramPattern = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

type Route struct {
	Method     string
	Pattern    string
	Matcher    *regexp.Regexp
	ParamNames []string
	Handlers   []Handler
}

// Match is a route selected for a request together with its parameters.
type Match struct {
	Route  *Route
	Params map[string]string
}

type RouteInfo struct {
	Method  string
	Pattern string
}

type routeTable struct {
	mu         sync.RWMutex
	routes     map[string][]*Route
	middleware []Handler
}

// Router maps method and path to an ordered handler list. Routes are tried
// in registration order and the first full match wins.
type Router struct {
	table      *routeTable
	prefix     string
	group      bool
	middleware []Handler
}

func NewRouter() *Router {
	return &Router{
		table: &routeTable{
			routes: make(map[string][]*Route),
		},
	}
}

// Use appends middleware. On the root router it runs for every matched
// route; inside a Group it only wraps routes registered afterwards.
func (router *Router) Use(middleware ...Handler) {
	if router.group {
		router.middleware = append(router.middleware, middleware...)
		return
	}

	router.table.mu.Lock()
	router.table.middleware = append(router.table.middleware, middleware...)
	router.table.mu.Unlock()
}

func (router *Router) GET(pattern string, handlers ...Handler) {
	router.Handle(http.MethodGet, pattern, handlers...)
}

func (router *Router) POST(pattern string, handlers ...Handler) {
	router.Handle(http.MethodPost, pattern, handlers...)
}

func (router *Router) PUT(pattern string, handlers ...Handler) {
	router.Handle(http.MethodPut, pattern, handlers...)
}

func (router *Router) DELETE(pattern string, handlers ...Handler) {
	router.Handle(http.MethodDelete, pattern, handlers...)
}

func (router *Router) Handle(method, pattern string, handlers ...Handler) {
	if len(handlers) == 0 {
		panic(fmt.Sprintf("http: route %s %s has no handlers", method, pattern))
	}

	pattern = router.prefix + pattern
	matcher, names := Compile(pattern)

	route := &Route{
		Method:     strings.ToUpper(method),
		Pattern:    pattern,
		Matcher:    matcher,
		ParamNames: names,
		Handlers:   append(slices.Clone(router.middleware), handlers...),
	}

	router.table.mu.Lock()
	router.table.routes[route.Method] = append(router.table.routes[route.Method], route)
	router.table.mu.Unlock()
}

// Group registers routes under prefix. Middleware given here wraps only
// the routes of the group.
func (router *Router) Group(prefix string, groupFunc func(group *Router), middleware ...Handler) {
	group := &Router{
		table:      router.table,
		prefix:     router.prefix + prefix,
		group:      true,
		middleware: append(slices.Clone(router.middleware), middleware...),
	}

	groupFunc(group)
}

// FindRoute returns the first route of method matching the whole path, or
// nil.
func (router *Router) FindRoute(method, path string) *Match {
	router.table.mu.RLock()
	routes := router.table.routes[strings.ToUpper(method)]
	router.table.mu.RUnlock()

	for _, route := range routes {
		groups := route.Matcher.FindStringSubmatch(path)
		if groups == nil {
			continue
		}

		params := make(map[string]string, len(route.ParamNames))
		for i, name := range route.ParamNames {
			params[name] = groups[i+1]
		}

		return &Match{Route: route, Params: params}
	}

	return nil
}

// Execute runs the global middleware and then the route handlers. Global
// middleware can only end the chain with Stop; any other result moves on.
// In the route handlers Stop or Terminal ends the chain and is returned. The
// first error aborts the chain.
func (router *Router) Execute(ctx *RequestContext, match *Match) (Result, error) {
	ctx.Route = match.Route
	ctx.Params = match.Params
	if ctx.Params == nil {
		ctx.Params = make(map[string]string)
	}

	router.table.mu.RLock()
	middleware := router.table.middleware
	router.table.mu.RUnlock()

	for _, handler := range middleware {
		result, err := handler(ctx)
		if err != nil {
			return None, err
		}

		if result.Kind == KindStop {
			return Stop, nil
		}
	}

	for _, handler := range match.Route.Handlers {
		result, err := handler(ctx)
		if err != nil {
			return None, err
		}

		if result.Ends() {
			return result, nil
		}
	}

	return None, nil
}

// Routes lists the registered routes grouped by method.
func (router *Router) Routes() []RouteInfo {
	router.table.mu.RLock()
	defer router.table.mu.RUnlock()

	methods := make([]string, 0, len(router.table.routes))
	for method := range router.table.routes {
		methods = append(methods, method)
	}
	slices.Sort(methods)

	var infos []RouteInfo
	for _, method := range methods {
		for _, route := range router.table.routes[method] {
			infos = append(infos, RouteInfo{Method: method, Pattern: route.Pattern})
		}
	}

	return infos
}

// Compile turns a pattern such as /products/:id into an anchored regular
// expression and the parameter names in capture order.
func Compile(pattern string) (*regexp.Regexp, []string) {
	var (
		expr  strings.Builder
		names []string
		last  int
	)

	expr.WriteByte('^')
	for _, loc := range paramPattern.FindAllStringSubmatchIndex(pattern, -1) {
		expr.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		expr.WriteString(`([^/]+)`)
		names = append(names, pattern[loc[2]:loc[3]])
		last = loc[1]
	}
	expr.WriteString(regexp.QuoteMeta(pattern[last:]))
	expr.WriteByte('$')

	return regexp.MustCompile(expr.String()), names
}
