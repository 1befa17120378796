package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// RoleAssigner grants the default role after registration.
type RoleAssigner interface {
	AssignRole(ctx context.Context, id, role string) (*entity.Identity, error)
}

// Handler exposes the /api/v1/auth endpoints.
type Handler struct {
	svc        *Service
	roles      RoleAssigner
	cookieName string
	logger     *zap.SugaredLogger
}

func NewHandler(svc *Service, roles RoleAssigner, cookieName string, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, roles: roles, cookieName: cookieName, logger: logger}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		common.WriteError(w, r, fmt.Errorf("%w: invalid payload", common.ErrValidation))
		return
	}
	out, err := h.svc.Login(r.Context(), req, HTTPResponse{W: w})
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		common.WriteError(w, r, fmt.Errorf("%w: invalid payload", common.ErrValidation))
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	if u, err = h.roles.AssignRole(r.Context(), u.ID, entity.RoleUser); err != nil {
		h.fail(w, r, "assign default role", err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, u)
}

// Refresh accepts an optional JSON body {"refreshToken": "..."}.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debugw("invalid refresh payload", "err", err)
		common.WriteError(w, r, fmt.Errorf("%w: invalid payload", common.ErrValidation))
		return
	}
	out, err := h.svc.Refresh(r.Context(), CandidatesFromRequest(r, h.cookieName, body.RefreshToken), HTTPResponse{W: w})
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), CandidatesFromRequest(r, h.cookieName, ""), HTTPResponse{W: w})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status, _ := common.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Errorw(op+" failed", "err", err)
	} else {
		h.logger.Debugw(op+" rejected", "err", err)
	}
	common.WriteError(w, r, err)
}
