package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/ashymuperekicmd/contact-api/datastores"
	"github.com/ashymuperekicmd/contact-api/handlers"
	"github.com/ashymuperekicmd/contact-api/router"
)

type ServerOptions struct {
	Host              string        `short:"H" doc:"host to listen on"                    default:""`
	Port              string        `short:"p" doc:"port to listen on"                    default:"5000"`
	ReadHeaderTimeout time.Duration `          doc:"time allowed to read request headers" default:"15s"`
}

func NewServer(options *ServerOptions, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              options.Host + ":" + options.Port,
		ReadHeaderTimeout: options.ReadHeaderTimeout,
		Handler:           handler,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

type RouterOptions struct {
	EndpointsPrefix string `doc:"mount endpoints at a prefix"`
	PublicURL       string `doc:"URL the API is reached at, advertised in the OpenAPI document"`
}

// pinger is implemented by stores that can report their reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(
	options *RouterOptions,
	title string,
	version string,
	revision string,
	created string,
	store datastores.ContactsStore,
	logger *slog.Logger,
) (http.Handler, huma.API) {
	huma.NewError = handlers.NewError

	config := handlers.Config(title, version)
	config.Info.Description = "A REST API for managing contacts with MongoDB"
	config.Info.Contact = &huma.Contact{Name: "API Support", Email: "support@contactsapi.com"}
	if options.PublicURL != "" {
		config.Servers = []*huma.Server{{URL: options.PublicURL}}
	}

	buildinfoMetric := joinQuote("build_info{goversion=", runtime.Version(),
		",title=", title,
		",version=", version,
		",revision=", revision,
		",created=", created,
		"} 1\n")
	metriks := metrics.NewSet()
	return router.New(config,
		readiness(store, logger),
		func(w io.Writer) {
			fmt.Fprint(w, buildinfoMetric)
			metriks.WritePrometheus(w)
			metrics.WriteProcessMetrics(w)
		},
		router.OptUseMiddleware(
			ctxlog{}.loggerMiddleware(logger),
			meterRequests(metriks),
			ctxlog{}.recoverMiddleware(logger),
		),
		router.OptGroup(options.EndpointsPrefix,
			router.OptAutoRegister(&handlers.Contacts{
				Store:        store,
				ErrorHandler: ctxlog{}.errorHandler(logger),
			}),
		),
	)
}

// readiness reports 503 while store cannot be reached.
func readiness(store datastores.ContactsStore, logger *slog.Logger) http.HandlerFunc {
	p, ok := store.(pinger)
	if !ok {
		return func(http.ResponseWriter, *http.Request) {}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second) //nolint: mnd // arbitrary
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "store not ready", slog.Any("err", err))
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
}

// ctxlog is a [context.Context] key and acts as a virtual package for operations related to it.
type ctxlog struct{}

// loggerMiddleware returns a middleware that sets a [slog.Logger] in
// the [context.Context] and logs the request after it has terminated.
// Requests without an X-Request-Id header are given one.
func (key ctxlog) loggerMiddleware(parent *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		requestID := ctx.Header("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.SetHeader("X-Request-Id", requestID)
		logger := parent.With("x-request-id", requestID)

		start := time.Now()
		next(huma.WithValue(ctx, key, logger.WithGroup("op").With("id", ctx.Operation().OperationID)))

		logger.LogAttrs(context.Background(), slog.LevelInfo,
			joinSpace(ctx.Operation().Method, ctx.Operation().Path, ctx.Version().Proto),
			slog.String("from", ctx.RemoteAddr()),
			slog.String("ref", ctx.Header("Referer")),
			slog.String("ua", ctx.Header("User-Agent")),
			slog.Int("status", ctx.Status()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}

// recoverMiddleware returns a middleware that recovers and logs the value from panic,
// then answers with a generic [http.StatusInternalServerError] body.
func (key ctxlog) recoverMiddleware(fallback *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			logger, ok := ctx.Context().Value(key).(*slog.Logger)
			if !ok {
				logger = fallback
			}
			logger.LogAttrs(context.Background(), slog.LevelError, "panic occurred", slog.Any("recovered", v))
			ctx.SetHeader("Content-Type", "application/json")
			ctx.SetStatus(http.StatusInternalServerError)
			_, _ = ctx.BodyWriter().Write([]byte(`{"message":"Something went wrong!"}` + "\n"))
		}()
		next(ctx)
	}
}

// errorHandler returns a function that gets the [slog.Logger] from [context.Context] and logs the error.
func (key ctxlog) errorHandler(fallback *slog.Logger) func(context.Context, error) {
	return func(ctx context.Context, err error) {
		level := slog.LevelError
		attrs := []slog.Attr{slog.Any("err", err)}

		var statusErr huma.StatusError
		if errors.As(err, &statusErr) {
			switch statusErr.GetStatus() / 100 {
			case 5: //nolint: mnd // 5XX HTTP Status Codes
				level = slog.LevelError
			case 4: //nolint: mnd // 4XX HTTP Status Codes
				level = slog.LevelWarn
			case 3: //nolint: mnd // 3XX HTTP Status Codes
				level = slog.LevelInfo
			}
			attrs = append(attrs, slog.Int("status", statusErr.GetStatus()))
		}

		logger, ok := ctx.Value(key).(*slog.Logger)
		if !ok {
			logger = fallback
		}
		logger.LogAttrs(context.Background(), level, "operation failed", attrs...)
	}
}

// meterRequests returns a middleware counting requests and timing them,
// labelled by operation and response status.
func meterRequests(set *metrics.Set) func(huma.Context, func(huma.Context)) {
	type key struct {
		operation string
		status    int
	}
	type ref struct {
		*metrics.Counter
		*metrics.PrometheusHistogram
	}

	refs := sync.Map{}
	refsMu := sync.Mutex{}
	buckets := metrics.ExponentialBuckets(1e-3, 5, 6) //nolint: mnd // arbitrary

	return func(ctx huma.Context, next func(huma.Context)) {
		op, start := ctx.Operation(), time.Now()
		next(ctx)

		k := key{op.OperationID, ctx.Status()}
		val, ok := refs.Load(k)
		if !ok {
			refsMu.Lock()
			val, ok = refs.Load(k)
			if !ok {
				labels := joinQuote("{operation=", op.OperationID, ",method=", op.Method, ",path=", op.Path, ",status=", strconv.Itoa(k.status), "}") //nolint: golines
				val = ref{
					set.NewCounter("http_requests_total" + labels),
					set.NewPrometheusHistogramExt("http_request_duration_seconds"+labels, buckets),
				}
				refs.Store(k, val)
			}
			refsMu.Unlock()
		}
		valref := val.(ref) //nolint: errcheck // always true
		valref.Counter.Inc()
		valref.PrometheusHistogram.UpdateDuration(start)
	}
}

// joinQuote is [strings.Join] with " as separator.
func joinQuote(elems ...string) string { return strings.Join(elems, `"`) }

// joinSpace is [strings.Join] with space as separator.
func joinSpace(elems ...string) string { return strings.Join(elems, ` `) }
