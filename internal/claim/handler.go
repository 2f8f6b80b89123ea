// AngelaMos | 2026
// handler.go

package claim

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
) {
	r.Route("/claims", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Submit)
		r.Get("/", h.List)
		r.Get("/{claimID}", h.Get)
		r.Post("/{claimID}/cancel", h.Cancel)
	})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SubmitClaimRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	in, fields := req.ToInput()
	if len(fields) > 0 {
		core.JSONError(w, core.ValidationError(fields...))
		return
	}

	c, err := h.service.SubmitClaim(r.Context(), userID, req.PolicyID, in)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.Created(w, ToClaimResponse(c))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	claims, err := h.service.ListClaims(r.Context(), userID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToClaimResponseList(claims))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	claimID := chi.URLParam(r, "claimID")

	c, err := h.service.GetClaim(r.Context(), userID, claimID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToClaimResponse(c))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	claimID := chi.URLParam(r, "claimID")

	c, err := h.service.CancelClaim(r.Context(), userID, claimID)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToClaimResponse(c))
}

// Transition applies a staff action to any claim (admin only).
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	claimID := chi.URLParam(r, "claimID")

	var req TransitionRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	c, err := h.service.TransitionClaim(
		r.Context(),
		actorID,
		claimID,
		Action(req.Action),
		req.Note,
	)
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, ToClaimResponse(c))
}
