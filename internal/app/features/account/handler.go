// internal/app/features/account/handler.go

// Package account serves the signed-in user's own profile: read,
// update, and account deletion under the retention policy.
package account

import (
	"context"
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apierrors "github.com/dalemusser/straywatch/internal/app/features/errors"
	"github.com/dalemusser/straywatch/internal/app/system/auditlog"
	"github.com/dalemusser/straywatch/internal/app/system/auth"
	"github.com/dalemusser/straywatch/internal/app/system/authz"
	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/timeouts"
	"github.com/dalemusser/straywatch/internal/app/workflow/accountflow"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// UserGetter loads the signed-in user's record.
type UserGetter interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

// Handler holds dependencies for the account endpoints.
type Handler struct {
	Users      UserGetter
	Flow       *accountflow.Service
	SessionMgr *auth.SessionManager
	ErrLog     *apierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

// NewHandler constructs an account Handler.
func NewHandler(users UserGetter, flow *accountflow.Service, sessionMgr *auth.SessionManager, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		Flow:       flow,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleGet handles GET /me.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("account not found"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type profileRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// HandleUpdate handles PUT /me. Empty fields are left unchanged.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.BadRequest(w, "invalid JSON body")
		return
	}

	u, err := h.Flow.UpdateProfile(ctx, userID, accountflow.ProfileInput{
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleDelete handles DELETE /me. Accounts with filed reports are
// deactivated instead of removed so the report trail stays intact.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}

	res, err := h.Flow.DeleteAccount(ctx, userID)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	if res.Deleted {
		h.AuditLog.AccountDeleted(ctx, r, userID)
	} else {
		h.AuditLog.AccountDeactivated(ctx, r, userID, res.ReportCount)
	}

	if h.SessionMgr != nil {
		if err := h.SessionMgr.SignOut(w, r); err != nil {
			h.Log.Warn("sign-out after account deletion failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, res)
}
