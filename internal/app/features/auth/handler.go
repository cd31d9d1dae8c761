// internal/app/features/auth/handler.go

// Package auth serves registration, login, and logout. Individuals are
// usable immediately after registering; organizations wait for an
// administrator's approval and are refused at login until approved.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apierrors "github.com/dalemusser/straywatch/internal/app/features/errors"
	userstore "github.com/dalemusser/straywatch/internal/app/store/users"
	sysauth "github.com/dalemusser/straywatch/internal/app/system/auth"
	"github.com/dalemusser/straywatch/internal/app/system/auditlog"
	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/htmlsanitize"
	"github.com/dalemusser/straywatch/internal/app/system/normalize"
	"github.com/dalemusser/straywatch/internal/app/system/ratelimit"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/app/system/timeouts"
	"github.com/dalemusser/straywatch/internal/app/workflow/approval"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// UserStore is the account surface the handlers need.
type UserStore interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

// Handler holds dependencies for the auth endpoints.
type Handler struct {
	Users      UserStore
	SessionMgr *sysauth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	ErrLog     *apierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

// NewHandler constructs an auth Handler. A nil limiter disables login
// throttling.
func NewHandler(users UserStore, sessionMgr *sysauth.SessionManager, limiter *ratelimit.LoginLimiter, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
	}
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type userResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:       u.ID.Hex(),
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
	}
}

// HandleRegister handles POST /auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.BadRequest(w, "invalid JSON body")
		return
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != status.RoleIndividual && role != status.RoleOrganization {
		h.ErrLog.Respond(w, r, faults.Validation("role must be individual or organization"))
		return
	}
	fullName := strings.TrimSpace(htmlsanitize.PlainText(req.FullName))
	if fullName == "" {
		h.ErrLog.Respond(w, r, faults.Validation("full name is required"))
		return
	}
	email := normalize.Email(req.Email)
	if !strings.Contains(email, "@") {
		h.ErrLog.Respond(w, r, faults.Validation("a valid e-mail address is required"))
		return
	}
	if len(req.Password) < 8 {
		h.ErrLog.Respond(w, r, faults.Validation("password must be at least 8 characters"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.Internal(err))
		return
	}

	created, err := h.Users.Create(ctx, models.User{
		FullName: fullName,
		Email:    email,
		Password: string(hash),
		Role:     role,
		Document: normalize.Document(req.Document),
		Phone:    strings.TrimSpace(req.Phone),
		Address:  strings.TrimSpace(htmlsanitize.PlainText(req.Address)),
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		h.ErrLog.Respond(w, r, faults.Conflict("an account with this e-mail already exists"))
		return
	}
	if err != nil {
		h.ErrLog.Respond(w, r, faults.Internal(err))
		return
	}

	h.AuditLog.Registered(ctx, r, created.ID, created.Role, created.Status)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toUserResponse(created))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.BadRequest(w, "invalid JSON body")
		return
	}
	email := normalize.Email(req.Email)

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, email); !ok {
			h.AuditLog.LoginFailed(ctx, r, nil, email, "rate limited")
			apierrors.WriteJSON(w, http.StatusTooManyRequests, "rate_limited", reason)
			return
		}
	}

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.AuditLog.LoginFailed(ctx, r, nil, email, "user not found")
		apierrors.WriteJSON(w, http.StatusUnauthorized, "authorization", "invalid e-mail or password")
		return
	}
	if err != nil {
		h.ErrLog.Respond(w, r, faults.Internal(err))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		h.AuditLog.LoginFailed(ctx, r, &u.ID, email, "wrong password")
		apierrors.WriteJSON(w, http.StatusUnauthorized, "authorization", "invalid e-mail or password")
		return
	}

	if err := approval.CanAuthenticate(u); errors.Is(err, approval.ErrUnderReview) {
		h.AuditLog.LoginBlockedPending(ctx, r, u.ID, u.Status)
		apierrors.WriteJSON(w, http.StatusForbidden, "authorization", "registration is under review")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, sysauth.SessionUser{
		ID:     u.ID.Hex(),
		Name:   u.FullName,
		Email:  u.Email,
		Role:   u.Role,
		Status: u.Status,
	}); err != nil {
		h.ErrLog.Respond(w, r, faults.Internal(err))
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Role)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(toUserResponse(u))
}

// HandleLogout handles POST /auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := sysauth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.ErrLog.Respond(w, r, faults.Internal(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
