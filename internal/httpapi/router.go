// Package httpapi exposes a session as a small read-mostly JSON API.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/internal/catalog"
	"github.com/signalsfoundry/celestial-catalog/internal/logging"
	"github.com/signalsfoundry/celestial-catalog/internal/session"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "X-Request-Id"

// Handler serves the JSON API for one session.
type Handler struct {
	sess *session.Session
	log  logging.Logger

	// Now supplies the default epoch for requests without one.
	Now func() time.Time
}

// NewHandler constructs a Handler bound to sess.
func NewHandler(sess *session.Session, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Noop()
	}
	return &Handler{sess: sess, log: log, Now: time.Now}
}

// Router mounts the API, /healthz and, when metrics is non-nil, /metrics.
func (h *Handler) Router(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(h.requestID)

	r.Get("/healthz", h.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/objects", h.ListObjects)
		r.Get("/objects/{ref}", h.DescribeObject)
		r.Get("/objects/{ref}/coverage", h.ObjectCoverage)
		r.Get("/objects/{ref}/state", h.ObjectState)
		r.Get("/frame", h.GetFrame)
		r.Put("/frame", h.PutFrame)
		r.Get("/kernels", h.ListKernels)
		r.Post("/kernels/reload", h.ReloadKernels)
	})
	return r
}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if incoming := r.Header.Get(requestIDHeader); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
		ctx, id := logging.EnsureRequestID(ctx)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Health reports liveness and basic session facts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"session": h.sess.ID(),
		"objects": h.sess.Len(),
		"kernels": len(h.sess.Kernels()),
	})
}

// ListObjects handles GET /v1/objects?filter=&moons_of=.
func (h *Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		objs []celestial.Object
		err  error
	)
	if moonsOf := q.Get("moons_of"); moonsOf != "" {
		objs, err = h.sess.MoonsOf(r.Context(), moonsOf)
	} else {
		var f session.Filter
		if f, err = session.ParseFilter(q.Get("filter")); err == nil {
			objs, err = h.sess.Objects(r.Context(), f)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": catalog.Objects(h.sess.Validator(), objs)})
}

// DescribeObject handles GET /v1/objects/{ref}?epoch=.
func (h *Handler) DescribeObject(w http.ResponseWriter, r *http.Request) {
	et, err := h.epoch(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.sess.Describe(r.Context(), chi.URLParam(r, "ref"), et)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ObjectCoverage handles GET /v1/objects/{ref}/coverage.
func (h *Handler) ObjectCoverage(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	win, err := h.sess.Coverage(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":       ref,
		"intervals": catalog.Intervals(win),
		"total":     win.Total(),
	})
}

// ObjectState handles GET /v1/objects/{ref}/state?epoch=&relative_to=.
func (h *Handler) ObjectState(w http.ResponseWriter, r *http.Request) {
	et, err := h.epoch(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ref := chi.URLParam(r, "ref")
	st, err := h.sess.State(r.Context(), ref, et, r.URL.Query().Get("relative_to"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":       ref,
		"epoch":     et,
		"epoch_utc": et.String(),
		"frame":     h.sess.ReferenceFrame().Name,
		"state":     st,
	})
}

// GetFrame handles GET /v1/frame.
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.ReferenceFrame())
}

// PutFrame handles PUT /v1/frame with body {"frame": "ECLIPJ2000"}.
func (h *Handler) PutFrame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Frame string `json:"frame"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", catalog.ErrInvalidRequest, err))
		return
	}
	if err := h.sess.SetReferenceFrame(r.Context(), body.Frame); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.ReferenceFrame())
}

// ListKernels handles GET /v1/kernels.
func (h *Handler) ListKernels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"kernels": h.sess.Kernels(),
		"files":   h.sess.KernelFiles(),
	})
}

// ReloadKernels handles POST /v1/kernels/reload.
func (h *Handler) ReloadKernels(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Reload(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": h.sess.KernelFiles()})
}

func (h *Handler) epoch(r *http.Request) (timectrl.Epoch, error) {
	raw := r.URL.Query().Get("epoch")
	if raw == "" {
		return timectrl.EpochFromTime(h.Now()), nil
	}
	et, err := timectrl.ParseEpoch(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", catalog.ErrInvalidRequest, err)
	}
	return et, nil
}

var httpStatus = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.NotFound:           http.StatusNotFound,
	codes.FailedPrecondition: http.StatusUnprocessableEntity,
	codes.OutOfRange:         http.StatusBadRequest,
	codes.DataLoss:           http.StatusInternalServerError,
	codes.Canceled:           499,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := status.Code(catalog.ToStatusError(err))
	httpCode, ok := httpStatus[code]
	if !ok {
		httpCode = http.StatusInternalServerError
	}
	if httpCode >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", logging.String("path", r.URL.Path), logging.Err(err))
	}
	writeJSON(w, httpCode, map[string]any{
		"error": err.Error(),
		"code":  code.String(),
	})
}

// writeJSON encodes v before committing the status, so an unencodable
// value becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{
			"error": fmt.Sprintf("encode response: %v", err),
			"code":  codes.Internal.String(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}
