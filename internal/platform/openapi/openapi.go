package openapi

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
)

// RouteLister reports the routes mounted on a server. *echo.Echo satisfies it.
type RouteLister interface {
	Routes() []*echo.Route
}

// Generator builds an OpenAPI 3.0 document from the routes registered on the
// server, so the document never drifts from what is actually served.
type Generator struct {
	routes  RouteLister
	title   string
	version string
	public  map[string]bool
}

// NewGenerator creates a generator over the given routes. Paths passed as
// public are documented without the bearer security requirement.
func NewGenerator(routes RouteLister, title, version string, public ...string) *Generator {
	g := &Generator{routes: routes, title: title, version: version, public: make(map[string]bool)}
	for _, p := range public {
		g.public[p] = true
	}
	return g
}

var paramPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// GenerateSpec produces the OpenAPI document as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]map[string]interface{})

	for _, r := range g.routes.Routes() {
		if !documented(r) {
			continue
		}
		path, params := convertPath(r.Path)
		item, ok := paths[path]
		if !ok {
			item = make(map[string]interface{})
			paths[path] = item
		}
		item[strings.ToLower(r.Method)] = g.buildOperation(r, params)
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"paths": paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"detail": map[string]string{"type": "string"},
					},
				},
			},
		},
	}
}

// documented skips the catch-all routes echo adds for group middleware.
func documented(r *echo.Route) bool {
	if r.Method == echo.RouteNotFound || r.Path == "" || r.Path == "/*" {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// convertPath rewrites echo parameters (:id, trailing *) to OpenAPI
// templates and returns the parameter names in order.
func convertPath(p string) (string, []string) {
	var params []string
	for _, m := range paramPattern.FindAllStringSubmatch(p, -1) {
		params = append(params, m[1])
	}
	out := paramPattern.ReplaceAllString(p, "{$1}")
	if strings.HasSuffix(out, "/*") {
		out = strings.TrimSuffix(out, "*") + "{path}"
		params = append(params, "path")
	}
	return out, params
}

func (g *Generator) buildOperation(r *echo.Route, params []string) map[string]interface{} {
	op := map[string]interface{}{
		"operationId": operationID(r),
		"tags":        []string{tagOf(r.Path)},
		"responses":   buildResponses(r),
	}

	if len(params) > 0 {
		var ps []map[string]interface{}
		for _, name := range params {
			schema := map[string]string{"type": "string"}
			if name == "id" {
				schema["format"] = "uuid"
			}
			ps = append(ps, map[string]interface{}{
				"name":     name,
				"in":       "path",
				"required": true,
				"schema":   schema,
			})
		}
		op["parameters"] = ps
	}

	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		op["requestBody"] = map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json":                  map[string]interface{}{"schema": map[string]string{"type": "object"}},
				"application/x-www-form-urlencoded": map[string]interface{}{"schema": map[string]string{"type": "object"}},
				"multipart/form-data":               map[string]interface{}{"schema": map[string]string{"type": "object"}},
			},
		}
	}

	if !g.public[r.Path] {
		op["security"] = []map[string][]string{{"bearerAuth": {}}}
	}
	return op
}

func buildResponses(r *echo.Route) map[string]interface{} {
	errRef := map[string]interface{}{
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
	withDesc := func(desc string) map[string]interface{} {
		out := map[string]interface{}{"description": desc}
		for k, v := range errRef {
			out[k] = v
		}
		return out
	}

	ok := "200"
	switch {
	case strings.Contains(r.Path, "/remove-"):
		ok = "204"
	case r.Method == http.MethodPost && (strings.Contains(r.Path, "/new") || strings.Contains(r.Path, "/assign-")):
		ok = "201"
	}

	return map[string]interface{}{
		ok:    map[string]string{"description": "Success"},
		"400": withDesc("Validation failed"),
		"401": withDesc("Missing or invalid credentials"),
		"403": withDesc("Forbidden"),
		"404": withDesc("Not found"),
	}
}

// operationID derives a name from the handler, e.g.
// "pkg/registry.(*Handler).CreatePatient-fm" becomes "CreatePatient".
// Anonymous handlers fall back to method and path.
func operationID(r *echo.Route) string {
	name := r.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" || strings.HasPrefix(name, "func") {
		return strings.ToLower(r.Method) + strings.NewReplacer("/", "_", ":", "", "*", "").Replace(r.Path)
	}
	return name
}

func tagOf(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if seg == "" {
		return "default"
	}
	return seg
}

// Handler serves the document. Routes are read per request so the handler
// can be mounted before the rest of the API.
func (g *Generator) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	}
}
