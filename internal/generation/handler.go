package generation

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge-ai/promptforge/internal/api"
	"github.com/promptforge-ai/promptforge/internal/auth"
	"github.com/promptforge-ai/promptforge/internal/events"
	"github.com/promptforge-ai/promptforge/internal/gate"
	"github.com/promptforge-ai/promptforge/internal/metrics"
)

const maxRequestBody = 1 << 20

// Handler runs the shared generation pipeline:
// authenticate → validate → authorize → vendor call → record → respond.
// Per-modality behavior lives entirely in the Generator implementations.
type Handler struct {
	gate      *gate.Service
	publisher *events.Publisher

	code  Generator
	image Generator
	video Generator
}

// NewHandler creates a new generation Handler. publisher may be nil.
func NewHandler(gateSvc *gate.Service, publisher *events.Publisher, code, image, video Generator) *Handler {
	return &Handler{
		gate:      gateSvc,
		publisher: publisher,
		code:      code,
		image:     image,
		video:     video,
	}
}

func (h *Handler) Code(w http.ResponseWriter, r *http.Request)  { h.generate(w, r, h.code) }
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) { h.generate(w, r, h.image) }
func (h *Handler) Video(w http.ResponseWriter, r *http.Request) { h.generate(w, r, h.video) }

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, g Generator) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	call, err := g.Decode(body)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	// The gate runs strictly before the vendor call: denied requests must
	// never incur vendor cost.
	decision, err := h.gate.Authorize(r.Context(), userID)
	if err != nil {
		slog.Error("authorizing generation", "error", err, "modality", g.Modality(), "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if !decision.Allowed {
		metrics.TrialDenialsTotal.Inc()
		metrics.GenerationsTotal.WithLabelValues(g.Modality(), "denied").Inc()
		h.publishQuotaDenied(r, g, userID, decision.Count)
		api.HandleError(w, api.ErrTrialExpired)
		return
	}

	start := time.Now()
	result, err := call(r.Context())
	metrics.VendorRequestDuration.WithLabelValues(g.Vendor()).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := "vendor_error"
		appErr := api.ErrVendorFailed
		if errors.Is(err, ErrMisconfigured) {
			kind = "misconfigured"
			appErr = api.ErrMisconfigured
		}
		slog.Error("generation failed", "error", err, "kind", kind, "modality", g.Modality(), "vendor", g.Vendor(), "user_id", userID)
		metrics.GenerationsTotal.WithLabelValues(g.Modality(), "vendor_failed").Inc()
		h.publishGeneration(r, g, userID, "vendor_failed", decision.Pro)
		api.HandleError(w, appErr)
		return
	}

	// Quota is consumed only after a verified success, and never by
	// subscribers.
	h.gate.Record(r.Context(), userID, decision)
	metrics.GenerationsTotal.WithLabelValues(g.Modality(), "succeeded").Inc()
	h.publishGeneration(r, g, userID, "succeeded", decision.Pro)

	if result.Stream != nil {
		defer result.Stream.Close()
		w.Header().Set("Content-Type", result.ContentType)
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, result.Stream); err != nil {
			slog.Warn("relaying vendor stream", "error", err, "modality", g.Modality())
		}
		return
	}

	api.JSONRaw(w, http.StatusOK, result.JSON)
}

func (h *Handler) publishGeneration(r *http.Request, g Generator, userID uuid.UUID, status string, pro bool) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.PublishGeneration(r.Context(), events.GenerationEvent{
		UserID:    userID,
		Modality:  g.Modality(),
		Vendor:    g.Vendor(),
		Status:    status,
		Pro:       pro,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing generation event", "error", err)
	}
}

func (h *Handler) publishQuotaDenied(r *http.Request, g Generator, userID uuid.UUID, count int) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.PublishQuotaDenied(r.Context(), events.QuotaEvent{
		UserID:    userID,
		Modality:  g.Modality(),
		Count:     count,
		Limit:     h.gate.FreeLimit(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing quota event", "error", err)
	}
}
