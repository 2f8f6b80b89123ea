// AngelaMos | 2026
// handler.go

package policy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/middleware"
)

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
	extra ...func(r chi.Router),
) {
	r.Route("/policies", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{policyID}", h.Get)
		r.Patch("/{policyID}", h.Update)
		r.Post("/{policyID}/cancel", h.Cancel)
		r.Delete("/{policyID}", h.Delete)

		for _, register := range extra {
			register(r)
		}
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreatePolicyRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	in, fields := req.ToInput()
	if len(fields) > 0 {
		core.JSONError(w, core.ValidationError(fields...))
		return
	}

	p, err := h.service.CreatePolicy(r.Context(), userID, in)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.Created(w, ToPolicyResponse(p))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	policies, err := h.service.ListPolicies(r.Context(), userID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToPolicyResponseList(policies))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	policyID := chi.URLParam(r, "policyID")

	p, err := h.service.GetPolicy(r.Context(), userID, policyID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToPolicyResponse(p))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	policyID := chi.URLParam(r, "policyID")

	var req UpdatePolicyRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	in, fields := req.ToInput()
	if len(fields) > 0 {
		core.JSONError(w, core.ValidationError(fields...))
		return
	}

	p, err := h.service.UpdatePolicy(r.Context(), userID, policyID, in)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToPolicyResponse(p))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	policyID := chi.URLParam(r, "policyID")

	p, err := h.service.CancelPolicy(r.Context(), userID, policyID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToPolicyResponse(p))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	policyID := chi.URLParam(r, "policyID")

	if err := h.service.DeletePolicy(r.Context(), userID, policyID); err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.NoContent(w)
}

// Reconcile runs one reconciliation pass on demand (admin only).
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.ReconcileAllStatuses(r.Context(), h.service.now())
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ReconcileResponse{Updated: updated})
}
