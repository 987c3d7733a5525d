package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rerrors "github.com/vango-dev/ripple/internal/errors"
)

// Option configures Handler.
type Option func(*handlerConfig)

type handlerConfig struct {
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	checkOrigin func(*http.Request) bool
}

// WithGatherer sets the source of the /metrics endpoint.
// Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *handlerConfig) {
		c.gatherer = g
	}
}

// WithLogger sets the logger for connection errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *handlerConfig) {
		c.logger = logger
	}
}

// WithCheckOrigin sets the websocket origin check.
// The default accepts only same-origin requests.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *handlerConfig) {
		c.checkOrigin = fn
	}
}

type handler struct {
	reg      *Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Handler returns the inspector routes for reg:
//
//	GET /healthz
//	GET /metrics
//	GET /readables
//	GET /readables/{name}
//	GET /readables/{name}/watch   (websocket, one JSON text frame per value)
func Handler(reg *Registry, opts ...Option) http.Handler {
	cfg := handlerConfig{
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &handler{
		reg:    reg,
		logger: cfg.logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.checkOrigin,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))

	r.Route("/readables", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{name}", h.get)
		r.Get("/{name}/watch", h.watch)
	})
	return r
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.reg.Snapshot())
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, ok := h.reg.lookup(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, notFound(name))
		return
	}
	h.writeJSON(w, http.StatusOK, Value{Name: name, Value: e.get()})
}

func (h *handler) watch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, ok := h.reg.lookup(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, notFound(name))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client only ever closes; reading surfaces that.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for v := range e.values(ctx) {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(Value{Name: name, Value: v}); err != nil {
			if !isClosed(err) {
				h.logger.Warn("inspect: watch write failed", "readable", name, "error", err)
			}
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, rerrors.New(rerrors.CodeInspectEncode).Wrap(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *handler) writeError(w http.ResponseWriter, status int, e *rerrors.Error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("inspect: request failed", "error", e)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Code: e.Code, Message: e.Message, Detail: e.Detail})
}
