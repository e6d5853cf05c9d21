package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router mounts domain route groups under a versioned API prefix
type Router struct {
	engine  *gin.Engine
	version string
	groups  []*DomainGroup
}

// Option configures a Router
type Option func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) Option {
	return func(r *Router) {
		r.version = version
	}
}

// NewRouter creates a Router serving /api/v1 unless told otherwise
func NewRouter(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues groups for Setup
func (r *Router) Register(groups ...*DomainGroup) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// BasePath returns the versioned API prefix, e.g. "/api/v1"
func (r *Router) BasePath() string {
	return "/api/" + r.version
}

// Setup registers every queued group on the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath())
	for _, g := range r.groups {
		g.RegisterRoutes(api)
	}
}

// Routes lists "METHOD path" for every registered route, relative to BasePath
func (r *Router) Routes() []string {
	var routes []string
	for _, g := range r.groups {
		routes = g.collect("", routes)
	}
	return routes
}

// DomainGroup collects the routes of one API area before they are mounted
type DomainGroup struct {
	name       string
	prefix     string
	routes     []route
	children   []*DomainGroup
	middleware []gin.HandlerFunc
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates an empty group mounted at prefix
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware that runs for this group and its children
func (g *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Handle registers a route for any HTTP method
func (g *DomainGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *DomainGroup {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

// GET registers a read route
func (g *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodGet, path, handlers...)
}

// POST registers a command route
func (g *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPost, path, handlers...)
}

// Group creates a child group below this one
func (g *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	g.children = append(g.children, child)
	return child
}

// RegisterRoutes mounts the group and its children on rg
func (g *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range g.children {
		child.RegisterRoutes(group)
	}
}

// Routes lists "METHOD path" for this group and its children
func (g *DomainGroup) Routes() []string {
	return g.collect("", nil)
}

func (g *DomainGroup) collect(parent string, out []string) []string {
	base := parent + g.prefix
	for _, rt := range g.routes {
		out = append(out, rt.method+" "+base+rt.path)
	}
	for _, child := range g.children {
		out = child.collect(base, out)
	}
	return out
}

// Name returns the group name
func (g *DomainGroup) Name() string {
	return g.name
}

// Prefix returns the group prefix
func (g *DomainGroup) Prefix() string {
	return g.prefix
}
