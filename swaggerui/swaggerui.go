package swaggerui

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Default asset locations.
const (
	DefaultJSURL              = "https://cdn.jsdelivr.net/npm/swagger-ui-dist@3/swagger-ui-bundle.js"
	DefaultCSSURL             = "https://cdn.jsdelivr.net/npm/swagger-ui-dist@3/swagger-ui.css"
	DefaultFaviconURL         = "https://fastapi.tiangolo.com/img/favicon.png"
	// DefaultContractsPluginURL is the published plugin. It reads x-contracts as an object of
	// preconditions, snapshots and postconditions, not as the list openapi.Annotator writes.
	// Set Config.ContractsPluginURL to a build that reads the list.
	DefaultContractsPluginURL = "https://unpkg.com/swagger-ui-plugin-contracts"

	// ContractsPlugin is the global the contracts plugin script defines.
	ContractsPlugin = "ContractsPlugin"
)

// ErrMissingOpenAPIURL is returned when a page is rendered without a schema URL.
var ErrMissingOpenAPIURL = errors.New("missing openapi url")

// Plugin is an additional Swagger UI plugin: the script defining it and its global name.
type Plugin struct {
	ScriptURL string
	Name      string
}

// Config is everything the page is rendered from. Empty asset URLs are rendered as is;
// use Page for the defaults.
type Config struct {
	OpenAPIURL         string
	Title              string
	JSURL              string
	CSSURL             string
	FaviconURL         string
	ContractsPluginURL string
	// OAuth2RedirectURL is resolved against window.location.origin, if set.
	OAuth2RedirectURL string
	// InitOAuth is passed to ui.initOAuth as JSON, if set.
	InitOAuth map[string]any
	// Plugins are loaded after the contracts plugin.
	Plugins []Plugin
}

// DefaultConfig returns the configuration Page renders.
func DefaultConfig(openapiURL, title string) Config {
	return Config{
		OpenAPIURL:         openapiURL,
		Title:              title,
		JSURL:              DefaultJSURL,
		CSSURL:             DefaultCSSURL,
		FaviconURL:         DefaultFaviconURL,
		ContractsPluginURL: DefaultContractsPluginURL,
	}
}

var pageTemplate = template.Must(template.New("swagger-ui").Parse(`<!DOCTYPE html>
<html>
<head>
<link type="text/css" rel="stylesheet" href="{{.CSSURL}}">
<link rel="shortcut icon" href="{{.FaviconURL}}">
<title>{{.Title}}</title>
</head>
<body>
<div id="swagger-ui">
</div>
<script src="{{.JSURL}}"></script>
<!-- SwaggerUIBundle is now available on the page -->
<script src="{{.ContractsPluginURL}}"></script>
{{- range .Plugins}}
<script src="{{.ScriptURL}}"></script>
{{- end}}
<script>
const ui = SwaggerUIBundle({
    url: {{.OpenAPIURL}},
{{- if .OAuth2RedirectURL}}
    oauth2RedirectUrl: window.location.origin + {{.OAuth2RedirectURL}},
{{- end}}
    dom_id: '#swagger-ui',
    presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
    ],
    plugins: [
        {{.PluginNames}}
    ],
    layout: "BaseLayout",
    deepLinking: true,
    showExtensions: true,
    showCommonExtensions: true
})
{{- if .InitOAuth}}
ui.initOAuth({{.InitOAuth}})
{{- end}}
</script>
</body>
</html>
`))

type pageData struct {
	Config
	PluginNames template.JS
	InitOAuth   template.JS
}

// HTML renders the documentation page for c.
func HTML(c Config) ([]byte, error) {
	if c.OpenAPIURL == "" {
		return nil, ErrMissingOpenAPIURL
	}

	names := []string{ContractsPlugin}
	for _, p := range c.Plugins {
		if !isIdentifier(p.Name) {
			return nil, fmt.Errorf("invalid plugin name %q", p.Name)
		}
		names = append(names, p.Name)
	}

	data := pageData{Config: c, PluginNames: template.JS(strings.Join(names, ",\n        "))}

	if len(c.InitOAuth) > 0 {
		raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(c.InitOAuth)
		if err != nil {
			return nil, fmt.Errorf("init oauth encode failed: %w", err)
		}
		data.InitOAuth = template.JS(raw)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Page renders the documentation page with the default assets.
func Page(openapiURL, title string) ([]byte, error) {
	return HTML(DefaultConfig(openapiURL, title))
}

// OAuth2RedirectHTML is the page Swagger UI's OAuth2 flow redirects back to.
const OAuth2RedirectHTML = `<!doctype html>
<html lang="en-US">
<head>
    <title>Swagger UI: OAuth2 Redirect</title>
</head>
<body>
<script>
    'use strict';
    function run () {
        var oauth2 = window.opener.swaggerUIRedirectOauth2;
        var sentState = oauth2.state;
        var redirectUrl = oauth2.redirectUrl;
        var isValid, qp, arr;

        if (/code|token|error/.test(window.location.hash)) {
            qp = window.location.hash.substring(1);
        } else {
            qp = location.search.substring(1);
        }

        arr = qp.split("&");
        arr.forEach(function (v,i,_arr) { _arr[i] = '"' + v.replace('=', '":"') + '"';});
        qp = qp ? JSON.parse('{' + arr.join() + '}',
                function (key, value) {
                    return key === "" ? value : decodeURIComponent(value);
                }
        ) : {};

        isValid = qp.state === sentState;

        if ((
          oauth2.auth.schema.get("flow") === "accessCode" ||
          oauth2.auth.schema.get("flow") === "authorizationCode" ||
          oauth2.auth.schema.get("flow") === "authorization_code"
        ) && !oauth2.auth.code) {
            if (!isValid) {
                oauth2.errCb({
                    authId: oauth2.auth.name,
                    source: "auth",
                    level: "warning",
                    message: "Authorization may be unsafe, passed state was changed in server Passed state wasn't returned from auth server"
                });
            }

            if (qp.code) {
                delete oauth2.state;
                oauth2.auth.code = qp.code;
                oauth2.callback({auth: oauth2.auth, redirectUrl: redirectUrl});
            } else {
                let oauthErrorMsg;
                if (qp.error) {
                    oauthErrorMsg = "["+qp.error+"]: " +
                        (qp.error_description ? qp.error_description+ ". " : "no accessCode received from the server. ") +
                        (qp.error_uri ? "More info: "+qp.error_uri : "");
                }

                oauth2.errCb({
                    authId: oauth2.auth.name,
                    source: "auth",
                    level: "error",
                    message: oauthErrorMsg || "[Authorization failed]: no accessCode received from the server"
                });
            }
        } else {
            oauth2.callback({auth: oauth2.auth, token: qp, isValid: isValid, redirectUrl: redirectUrl});
        }
        window.close();
    }

    window.addEventListener('DOMContentLoaded', function () {
        run();
    });
</script>
</body>
</html>
`

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

func writeHTML(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
