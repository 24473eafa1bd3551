package swaggerui_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
	"github.com/AntonStoeckl/endpoint-contracts-go/openapi"
	"github.com/AntonStoeckl/endpoint-contracts-go/routing"
	"github.com/AntonStoeckl/endpoint-contracts-go/swaggerui"
)

func Test_Page_UsesDefaultAssets(t *testing.T) {
	// act
	page, err := swaggerui.Page("/openapi.json", "Books - Swagger UI")

	// assert
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, `<script src="`+swaggerui.DefaultJSURL+`"></script>`)
	assert.Contains(t, html, `href="`+swaggerui.DefaultCSSURL+`"`)
	assert.Contains(t, html, `<script src="`+swaggerui.DefaultContractsPluginURL+`"></script>`)
	assert.Contains(t, html, `url: "/openapi.json"`)
	assert.Contains(t, html, "<title>Books - Swagger UI</title>")
	assert.Contains(t, html, swaggerui.ContractsPlugin)
	assert.Contains(t, html, "showExtensions: true")
	assert.NotContains(t, html, "oauth2RedirectUrl")
	assert.NotContains(t, html, "initOAuth")
}

func Test_HTML_CustomAssetsPluginsAndOAuth(t *testing.T) {
	// arrange
	c := swaggerui.DefaultConfig("/api/openapi.json", "Books")
	c.JSURL = "/static/swagger-ui-bundle.js"
	c.ContractsPluginURL = "/static/swagger-ui-plugin-contracts.js"
	c.OAuth2RedirectURL = "/docs/oauth2-redirect"
	c.InitOAuth = map[string]any{"clientId": "books"}
	c.Plugins = []swaggerui.Plugin{{ScriptURL: "/static/extra.js", Name: "ExtraPlugin"}}

	// act
	page, err := swaggerui.HTML(c)

	// assert
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, `<script src="/static/swagger-ui-bundle.js"></script>`)
	assert.Contains(t, html, `<script src="/static/swagger-ui-plugin-contracts.js"></script>`)
	assert.Contains(t, html, `<script src="/static/extra.js"></script>`)
	assert.Contains(t, html, "ContractsPlugin,\n        ExtraPlugin")
	assert.Contains(t, html, `oauth2RedirectUrl: window.location.origin + "/docs/oauth2-redirect"`)
	assert.Contains(t, html, `ui.initOAuth({"clientId":"books"})`)
}

func Test_HTML_RejectsInvalidConfig(t *testing.T) {
	// arrange
	withPlugin := swaggerui.DefaultConfig("/openapi.json", "Books")
	withPlugin.Plugins = []swaggerui.Plugin{{ScriptURL: "/x.js", Name: "alert(1)"}}

	// act
	_, missingURLErr := swaggerui.HTML(swaggerui.Config{})
	_, pluginErr := swaggerui.HTML(withPlugin)

	// assert
	assert.ErrorIs(t, missingURLErr, swaggerui.ErrMissingOpenAPIURL)
	assert.Error(t, pluginErr)
}

func newRouterWithSchema(t *testing.T) *routing.Router {
	t.Helper()

	router, err := routing.NewRouter()
	require.NoError(t, err)

	ep := contracts.Handle(contracts.NewSignature(), func(context.Context, contracts.Args) (any, error) { return 0, nil })
	require.NoError(t, router.Handle(http.MethodGet, "/book_count", ep))

	annotator, err := openapi.NewAnnotator(router, openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)
	require.NoError(t, router.ServeSchema("/openapi.json", annotator))

	return router
}

func Test_SetUpRoute_ServesPage(t *testing.T) {
	// arrange
	router := newRouterWithSchema(t)

	// act
	err := swaggerui.SetUpRoute(router, "/docs",
		swaggerui.Title("Books - Swagger UI"),
		swaggerui.RootPath("/api/"),
		swaggerui.OAuth2Redirect("/docs/oauth2-redirect"),
	)

	// assert
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `url: "/api/openapi.json"`)
	assert.Contains(t, rec.Body.String(), "<title>Books - Swagger UI</title>")

	redirect := httptest.NewRecorder()
	router.ServeHTTP(redirect, httptest.NewRequest(http.MethodGet, "/docs/oauth2-redirect", nil))
	require.Equal(t, http.StatusOK, redirect.Code)
	assert.Contains(t, redirect.Body.String(), "swaggerUIRedirectOauth2")

	assert.Len(t, router.Routes(), 1, "docs routes are not part of the schema")
}

func Test_SetUpRoute_KeepsExistingOAuth2Redirect(t *testing.T) {
	// arrange
	router := newRouterWithSchema(t)
	require.NoError(t, router.HandleFunc(http.MethodGet, "/oauth2-redirect", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	// act
	err := swaggerui.SetUpRoute(router, "/docs", swaggerui.OAuth2Redirect("/oauth2-redirect"))

	// assert
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2-redirect", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func Test_SetUpRoute_RefusesToShadowExistingRoute(t *testing.T) {
	// arrange
	router := newRouterWithSchema(t)
	require.NoError(t, router.HandleFunc(http.MethodGet, "/docs", func(http.ResponseWriter, *http.Request) {}))

	// act
	err := swaggerui.SetUpRoute(router, "/docs")

	// assert
	assert.ErrorIs(t, err, swaggerui.ErrRouteExists)
}

func Test_SetUpRoute_RequiresSchema(t *testing.T) {
	// arrange
	router, err := routing.NewRouter()
	require.NoError(t, err)

	// act
	err = swaggerui.SetUpRoute(router, "/docs")

	// assert
	assert.ErrorIs(t, err, swaggerui.ErrNoSchema)
	assert.False(t, router.HasRoute(http.MethodGet, "/docs"))
}
