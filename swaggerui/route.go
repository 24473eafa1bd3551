package swaggerui

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRouteExists is returned when the docs path already has a GET route.
var ErrRouteExists = errors.New("route already set up")

// ErrNoSchema is returned when the router does not serve an OpenAPI document.
var ErrNoSchema = errors.New("router has no openapi url")

// Router is what SetUpRoute needs from the host router.
type Router interface {
	HasRoute(method, path string) bool
	HandleFunc(method, path string, h http.HandlerFunc) error
	SchemaURL() string
}

// RouteOption configures the docs route.
type RouteOption func(*routeSettings)

type routeSettings struct {
	title             string
	rootPath          string
	oauth2RedirectURL string
	initOAuth         map[string]any
	assets            func(*Config)
}

// Title sets the page title.
func Title(title string) RouteOption {
	return func(s *routeSettings) { s.title = title }
}

// RootPath prefixes the schema URL and the OAuth2 redirect URL, for services mounted below a
// proxy path.
func RootPath(prefix string) RouteOption {
	return func(s *routeSettings) { s.rootPath = strings.TrimRight(prefix, "/") }
}

// OAuth2Redirect serves the OAuth2 redirect page at path, unless a GET route exists there.
func OAuth2Redirect(path string) RouteOption {
	return func(s *routeSettings) { s.oauth2RedirectURL = path }
}

// InitOAuth passes settings to ui.initOAuth.
func InitOAuth(settings map[string]any) RouteOption {
	return func(s *routeSettings) { s.initOAuth = settings }
}

// Assets customizes the rendered Config, e.g. to self-host the assets or add plugins.
func Assets(customize func(*Config)) RouteOption {
	return func(s *routeSettings) { s.assets = customize }
}

// SetUpRoute serves Swagger UI with the contracts plugin at GET path.
// It fails when path already has a GET route or when router serves no OpenAPI document.
func SetUpRoute(router Router, path string, opts ...RouteOption) error {
	if router.HasRoute(http.MethodGet, path) {
		return fmt.Errorf("%w: no GET route must be set for %q to serve Swagger UI with contracts plugin",
			ErrRouteExists, path)
	}

	schemaURL := router.SchemaURL()
	if schemaURL == "" {
		return fmt.Errorf("%w: Swagger UI with contracts plugin needs the OpenAPI document", ErrNoSchema)
	}

	s := routeSettings{title: "API - Swagger UI"}
	for _, opt := range opts {
		opt(&s)
	}

	c := DefaultConfig(s.rootPath+schemaURL, s.title)
	c.InitOAuth = s.initOAuth
	if s.oauth2RedirectURL != "" {
		c.OAuth2RedirectURL = s.rootPath + s.oauth2RedirectURL
	}
	if s.assets != nil {
		s.assets(&c)
	}

	page, err := HTML(c)
	if err != nil {
		return err
	}

	err = router.HandleFunc(http.MethodGet, path, func(w http.ResponseWriter, _ *http.Request) {
		writeHTML(w, page)
	})
	if err != nil {
		return err
	}

	if s.oauth2RedirectURL == "" || router.HasRoute(http.MethodGet, s.oauth2RedirectURL) {
		return nil
	}

	return router.HandleFunc(http.MethodGet, s.oauth2RedirectURL, func(w http.ResponseWriter, _ *http.Request) {
		writeHTML(w, []byte(OAuth2RedirectHTML))
	})
}
