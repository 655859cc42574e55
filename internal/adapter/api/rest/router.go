package rest

import (
	_ "embed"
	"net/http"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed openapi.yaml
var openAPISpec []byte

// RouterOptions carries the cross-cutting pieces the routes need.
type RouterOptions struct {
	Verifier       TokenVerifier
	ToggleLimiter  *ToggleLimiter
	AllowedOrigins []string
}

// NewRouter initializes the HTTP router and registers routes.
func NewRouter(h *Handler, authH *AuthHandler, opts RouterOptions, mws ...Middleware) http.Handler {
	mux := http.NewServeMux()

	// Auth Routes (Public)
	mux.HandleFunc("POST /signup", authH.SignUp)
	mux.HandleFunc("POST /login", authH.Login)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	optional := OptionalAuth(opts.Verifier)
	required := RequireAuth(opts.Verifier)
	mutate := func(fn http.HandlerFunc) http.Handler {
		if opts.ToggleLimiter == nil {
			return optional(fn)
		}
		return optional(opts.ToggleLimiter.Middleware(fn))
	}

	// Anonymous users may read and attempt toggles; the outcome tells them to sign in.
	mux.Handle("GET /favorites/{listingID}", optional(http.HandlerFunc(h.Status)))
	mux.Handle("POST /favorites/{listingID}/toggle", mutate(h.Toggle))
	mux.Handle("PUT /favorites/{listingID}", mutate(h.Add))
	mux.Handle("DELETE /favorites/{listingID}", mutate(h.Remove))

	// Protected Routes
	mux.Handle("GET /favorites/ids", required(http.HandlerFunc(h.IDs)))
	mux.Handle("GET /favorites", required(http.HandlerFunc(h.List)))
	mux.Handle("DELETE /session", required(http.HandlerFunc(h.EndSession)))

	// Documentation
	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openAPISpec)
	})

	mux.HandleFunc("GET /api-docs", func(w http.ResponseWriter, r *http.Request) {
		html := `<!DOCTYPE html>
				<html lang="en">
				<head>
					<meta charset="utf-8" />
					<meta name="viewport" content="width=device-width, initial-scale=1" />
					<meta name="description" content="SwaggerUI" />
					<title>Marketplace Favorites API</title>
					<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
				</head>
				<body>
				<div id="swagger-ui"></div>
				<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
				<script>
					window.onload = () => {
						window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui' });
					};
				</script>
				</body>
				</html>`
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	})

	// Wrap with middleware
	return otelhttp.NewHandler(c.Handler(Chain(mux, mws...)), "favorites-api")
}
