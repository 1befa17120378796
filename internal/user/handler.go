package user

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// Handler exposes user and admin endpoints. Every method receives the
// authenticated principal from the access guard.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request, principal *entity.Identity) {
	common.WriteJSON(w, http.StatusOK, principal)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ *entity.Identity) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	users, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, "list users", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, principal *entity.Identity) {
	id := r.PathValue("id")
	if !canAccess(principal, id) {
		common.WriteError(w, r, common.ErrForbidden)
		return
	}
	u, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request, _ *entity.Identity) {
	var req CreateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid create user payload", "err", err)
		common.WriteError(w, r, fmt.Errorf("%w: invalid payload", common.ErrValidation))
		return
	}
	u, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create user", err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, u)
}

// Update lets users edit themselves; enabled and provider are admin-only.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, principal *entity.Identity) {
	id := r.PathValue("id")
	if !canAccess(principal, id) {
		common.WriteError(w, r, common.ErrForbidden)
		return
	}
	var req UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid update user payload", "err", err)
		common.WriteError(w, r, fmt.Errorf("%w: invalid payload", common.ErrValidation))
		return
	}
	if !principal.HasRole(entity.RoleAdmin) && (req.Enabled != nil || req.Provider != nil) {
		common.WriteError(w, r, common.ErrForbidden)
		return
	}
	u, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update user", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, principal *entity.Identity) {
	id := r.PathValue("id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete user", err)
		return
	}
	h.logger.Infow("user deleted", "id", id, "by", principal.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request, principal *entity.Identity) {
	var req CreateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid create admin payload", "err", err)
		common.WriteError(w, r, fmt.Errorf("%w: invalid payload", common.ErrValidation))
		return
	}
	u, err := h.svc.CreateAdmin(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create admin", err)
		return
	}
	h.logger.Infow("admin created", "id", u.ID, "by", principal.ID)
	common.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) AssignAdmin(w http.ResponseWriter, r *http.Request, principal *entity.Identity) {
	id := r.PathValue("userId")
	u, err := h.svc.AssignAdminRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, "assign admin", err)
		return
	}
	h.logger.Infow("admin role assigned", "id", u.ID, "by", principal.ID)
	common.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status, _ := common.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Errorw(op+" failed", "err", err)
	} else {
		h.logger.Debugw(op+" rejected", "err", err)
	}
	common.WriteError(w, r, err)
}

func canAccess(principal *entity.Identity, id string) bool {
	return principal.ID == id || principal.HasRole(entity.RoleAdmin)
}
