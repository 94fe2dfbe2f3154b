package router

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
)

// Option configures the [huma.API] built by [New].
type Option func(huma.API)

// New builds the service mux: liveness, readiness and metrics endpoints
// next to the huma API described by config and opts. The root path
// describes the API and every other unknown path gets a JSON 404.
func New(
	config huma.Config,
	readiness http.HandlerFunc,
	writeMetrics func(io.Writer),
	opts ...Option,
) (*http.ServeMux, huma.API) {
	mux := http.NewServeMux()
	mux.HandleFunc("/liveness", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("/readiness", readiness)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) { writeMetrics(w) })

	api := humago.New(mux, config)
	for _, opt := range opts {
		opt(api)
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   config.Info.Title + " is running!",
			"endpoints": endpoints(api.OpenAPI()),
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Route not found"})
	})

	return mux, api
}

func OptUseMiddleware(middlewares ...func(huma.Context, func(huma.Context))) Option {
	return func(api huma.API) { api.UseMiddleware(middlewares...) }
}

// OptGroup applies opts to the operations mounted at prefix.
func OptGroup(prefix string, opts ...Option) Option {
	return func(api huma.API) {
		if prefix != "" && prefix != "/" {
			api = huma.NewGroup(api, prefix)
		}
		for _, opt := range opts {
			opt(api)
		}
	}
}

// OptAutoRegister registers the operations of server, see [huma.AutoRegister].
func OptAutoRegister(server any) Option {
	return func(api huma.API) { huma.AutoRegister(api, server) }
}

// endpoints lists the operations of oapi by operation ID, as "METHOD /path".
func endpoints(oapi *huma.OpenAPI) map[string]string {
	m := map[string]string{}
	for path, item := range oapi.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Post, item.Put, item.Patch, item.Delete} {
			if op != nil && !op.Hidden {
				m[op.OperationID] = op.Method + " " + path
			}
		}
	}
	return m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
