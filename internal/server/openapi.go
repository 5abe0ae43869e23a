package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"path"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// publicRoutes lists the paths served without credentials.
func publicRoutes(basePath string, devLogin bool) map[string]bool {
	routes := map[string]bool{
		path.Join(basePath, "health"):       true,
		path.Join(basePath, "openapi.json"): true,
	}
	if devLogin {
		routes[path.Join(basePath, "auth/dev/login")] = true
	}
	return routes
}

// registerOpenAPI serves the OpenAPI document at {basePath}/openapi.json and a Swagger
// UI page at /docs. The document is decorated once, on first request.
func registerOpenAPI(r chi.Router, api huma.API, basePath string, public map[string]bool) {
	var (
		once sync.Once
		doc  []byte
		err  error
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			decorateOpenAPI(oas, public)
			doc, err = json.Marshal(oas)
		})
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "", "openapi unavailable", nil))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})
	docURL := path.Join("/", basePath, "openapi.json")
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = docsPage.Execute(w, docURL)
	})
}

func eachOperation(oas *huma.OpenAPI, fn func(route string, op *huma.Operation)) {
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op != nil {
				fn(route, op)
			}
		}
	}
}

// decorateOpenAPI adds the error envelope as every operation's default
// response and declares bearer and API key security on non-public routes.
func decorateOpenAPI(oas *huma.OpenAPI, public map[string]bool) {
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{Type: "apiKey", In: "header", Name: "X-Api-Key"}
	security := []map[string][]string{{"bearerAuth": {}}, {"apiKeyAuth": {}}}
	oas.Security = security

	envelope := errorEnvelopeSchema()
	eachOperation(oas, func(route string, op *huma.Operation) {
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}
		op.Responses["default"] = &huma.Response{
			Description: "Error envelope",
			Content:     map[string]*huma.MediaType{"application/json": {Schema: envelope}},
		}
		if public[route] {
			op.Security = []map[string][]string{}
			return
		}
		op.Security = security
	})
}

func errorEnvelopeSchema() *huma.Schema {
	return &huma.Schema{
		Type: "object",
		Properties: map[string]*huma.Schema{
			"success": {Type: "boolean"},
			"error": {
				Type: "object",
				Properties: map[string]*huma.Schema{
					"code":    {Type: "string"},
					"message": {Type: "string"},
					"details": {Type: "object"},
				},
				Required: []string{"code", "message"},
			},
		},
		Required: []string{"success", "error"},
	}
}

var docsPage = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>Collaboration Hub API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
  <script>
    window.onload = () => SwaggerUIBundle({url: {{.}}, dom_id: '#swagger-ui'});
  </script>
</body>
</html>`))
