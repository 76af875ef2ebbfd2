package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Envelope is the response shape the REST surface commits: broadcasts fire
// only for payloads whose success flag is true.
type Envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BroadcastFunc receives the resolved resource id and the response data
// after the HTTP response has been committed.
type BroadcastFunc func(ctx context.Context, id string, data json.RawMessage)

// Route is one entry of the registration table: it tags a mutating route
// with its resource kind, the path variable carrying the id, and the
// broadcast to fire per write kind. Tagged registration replaces any
// method-plus-path string parsing.
type Route struct {
	Resource string
	IdParam  string

	OnUpdate BroadcastFunc
	OnCreate BroadcastFunc
	// OnUpload fires once per uploaded item when the response data is an
	// array, once with the whole data otherwise.
	OnUpload BroadcastFunc
}

// Bridge turns committed REST write responses into realtime broadcasts.
// It is inert until Ready is called, so REST behavior never depends on the
// realtime subsystem being up. Callback failures are logged and swallowed:
// the HTTP response is already on the wire.
type Bridge struct {
	logger *zap.Logger
	ready  atomic.Bool
}

func New(logger *zap.Logger) *Bridge {
	return &Bridge{
		logger: logger,
	}
}

// Ready arms the bridge; call it once the realtime controller is wired.
func (b *Bridge) Ready() {
	b.ready.Store(true)
}

// Middleware wraps a mutating route's handler. The wrapped handler runs
// untouched; after its response is committed, a successful envelope
// triggers the route's broadcast callback exactly once.
func (b *Bridge) Middleware(route Route) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !b.ready.Load() {
				next.ServeHTTP(w, r)

				return
			}

			capture := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			b.afterResponse(route, r, capture)
		})
	}
}

func (b *Bridge) afterResponse(route Route, r *http.Request, capture *captureWriter) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("broadcast callback panicked",
				zap.String("resource", route.Resource),
				zap.Any("panic", rec))
		}
	}()

	var envelope Envelope
	if err := json.Unmarshal(capture.body.Bytes(), &envelope); err != nil {
		b.logger.Debug("response body is not a broadcastable envelope",
			zap.String("resource", route.Resource),
			zap.Error(err))

		return
	}

	if !envelope.Success {
		return
	}

	// The request context dies with the handler; callbacks run after it.
	ctx := context.WithoutCancel(r.Context())

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		if route.OnUpdate == nil {
			return
		}

		route.OnUpdate(ctx, b.resolveId(route, r, envelope.Data), envelope.Data)
	case http.MethodPost:
		if route.OnUpload != nil {
			b.emitUploads(ctx, route, r, envelope.Data)

			return
		}

		if route.OnCreate == nil {
			return
		}

		route.OnCreate(ctx, b.resolveId(route, r, envelope.Data), envelope.Data)
	}
}

func (b *Bridge) emitUploads(ctx context.Context, route Route, r *http.Request, data json.RawMessage) {
	id := b.resolveId(route, r, data)

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		route.OnUpload(ctx, id, data)

		return
	}

	for _, item := range items {
		route.OnUpload(ctx, id, item)
	}
}

// resolveId prefers the route's id variable; for creates, where the route
// carries no id, the new resource's _id from the response data is used.
func (b *Bridge) resolveId(route Route, r *http.Request, data json.RawMessage) string {
	if id, ok := mux.Vars(r)[route.IdParam]; ok && id != "" {
		return id
	}

	var record struct {
		Id string `json:"_id"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		b.logger.Warn("could not resolve resource id from response data",
			zap.String("resource", route.Resource),
			zap.Error(err))

		return ""
	}

	return record.Id
}

type captureWriter struct {
	http.ResponseWriter

	body bytes.Buffer
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.body.Write(p)

	return w.ResponseWriter.Write(p)
}
