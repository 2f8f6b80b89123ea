// AngelaMos | 2026
// handler.go

package payment

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/middleware"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/payments", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Record)
		r.Get("/", h.List)
		r.Patch("/{paymentID}/status", h.UpdateStatus)
	})
}

// RegisterPolicyRoutes mounts the payment views that live under a policy.
func (h *Handler) RegisterPolicyRoutes(r chi.Router) {
	r.Get("/{policyID}/balance", h.Balance)
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RecordPaymentRequest
	if !core.DecodeJSON(w, r, &req) {
		return
	}

	if req.TransactionID == "" {
		req.TransactionID = strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	}

	if !core.Validate(w, h.validator, &req) {
		return
	}

	in, fields := req.ToInput()
	if len(fields) > 0 {
		core.JSONError(w, core.ValidationError(fields...))
		return
	}

	p, created, err := h.service.RecordPayment(r.Context(), userID, req.PolicyID, in)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	if !created {
		core.OK(w, ToPaymentResponse(p))
		return
	}
	core.Created(w, ToPaymentResponse(p))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	payments, err := h.service.ListPayments(r.Context(), userID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToPaymentResponseList(payments))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	paymentID := chi.URLParam(r, "paymentID")

	var req UpdateStatusRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	p, err := h.service.UpdatePaymentStatus(r.Context(), userID, paymentID, Status(req.Status))
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToPaymentResponse(p))
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	policyID := chi.URLParam(r, "policyID")

	b, err := h.service.PolicyBalance(r.Context(), userID, policyID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToBalanceResponse(b))
}
