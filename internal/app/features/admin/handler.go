// internal/app/features/admin/handler.go

// Package admin serves the administrator console: the pending-items
// queue, organization approval decisions, ban confirmation, denied
// report review, and the audit trail.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apierrors "github.com/dalemusser/straywatch/internal/app/features/errors"
	"github.com/dalemusser/straywatch/internal/app/store/audit"
	"github.com/dalemusser/straywatch/internal/app/system/auditlog"
	"github.com/dalemusser/straywatch/internal/app/system/authz"
	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/protocol"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/app/system/timeouts"
	"github.com/dalemusser/straywatch/internal/app/workflow/approval"
	"github.com/dalemusser/straywatch/internal/app/workflow/reportflow"
	"github.com/dalemusser/straywatch/internal/app/workflow/trust"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// AuditQuerier reads back recorded audit events.
type AuditQuerier interface {
	Query(ctx context.Context, f audit.QueryFilter) ([]audit.Event, error)
}

// Handler holds dependencies for the administrator endpoints.
type Handler struct {
	Approval *approval.Service
	Trust    *trust.Service
	Flow     *reportflow.Service
	Audit    AuditQuerier
	ErrLog   *apierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

// NewHandler constructs an admin Handler.
func NewHandler(approvalSvc *approval.Service, trustSvc *trust.Service, flow *reportflow.Service, auditStore AuditQuerier, errLog *apierrors.ErrorLogger, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Approval: approvalSvc,
		Trust:    trustSvc,
		Flow:     flow,
		Audit:    auditStore,
		ErrLog:   errLog,
		AuditLog: auditLog,
		Log:      logger,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(chi.URLParam(r, name))
}

type pendingOrg struct {
	Code string      `json:"code"`
	User models.User `json:"user"`
}

type flaggedUser struct {
	Code    string          `json:"code"`
	User    models.User     `json:"user"`
	Reports []models.Report `json:"reports"`
}

type deniedReport struct {
	Code     string        `json:"code"`
	Report   models.Report `json:"report"`
	Protocol string        `json:"protocol"`
	Feedback string        `json:"feedback,omitempty"`
}

type pendingResponse struct {
	Organizations []pendingOrg   `json:"organizations"`
	FlaggedUsers  []flaggedUser  `json:"flagged_users"`
	DeniedReports []deniedReport `json:"denied_reports"`
}

// deniedFeedback is the observation recorded on the most recent move to
// the denied status.
func deniedFeedback(history []models.HistoryEntry) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].NewStatus == status.ReportDenied {
			return history[i].Observation
		}
	}
	return ""
}

// HandlePending handles GET /pending: every item awaiting an
// administrator decision, each with its display code.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	_, _, adminID, ok := authz.UserCtx(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}

	orgs, err := h.Approval.ListPending(ctx)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	flagged, err := h.Trust.ListFlagged(ctx)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	denied, err := h.Flow.ListDenied(ctx, reportflow.Actor{ID: adminID, Role: status.RoleAdmin})
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}

	resp := pendingResponse{
		Organizations: make([]pendingOrg, 0, len(orgs)),
		FlaggedUsers:  make([]flaggedUser, 0, len(flagged)),
		DeniedReports: make([]deniedReport, 0, len(denied)),
	}
	for i, u := range orgs {
		resp.Organizations = append(resp.Organizations, pendingOrg{
			Code: protocol.Code(protocol.PrefixOrganization, int64(i+1)),
			User: u,
		})
	}
	for i, fu := range flagged {
		resp.FlaggedUsers = append(resp.FlaggedUsers, flaggedUser{
			Code:    protocol.Code(protocol.PrefixUser, int64(i+1)),
			User:    fu.User,
			Reports: fu.Reports,
		})
	}
	for _, v := range denied {
		resp.DeniedReports = append(resp.DeniedReports, deniedReport{
			Code:     protocol.Code(protocol.PrefixDenied, v.Report.Seq),
			Report:   v.Report,
			Protocol: v.Protocol,
			Feedback: deniedFeedback(v.History),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleApproveOrg handles POST /organizations/{userID}/approve.
func (h *Handler) HandleApproveOrg(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, _, adminID, ok := authz.UserCtx(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("organization not found"))
		return
	}
	u, err := h.Approval.Approve(ctx, id)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	h.AuditLog.OrgApproved(ctx, r, adminID, u.ID)
	writeJSON(w, http.StatusOK, u)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// HandleRejectOrg handles POST /organizations/{userID}/reject.
func (h *Handler) HandleRejectOrg(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, _, adminID, ok := authz.UserCtx(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("organization not found"))
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.BadRequest(w, "invalid JSON body")
		return
	}
	u, err := h.Approval.Reject(ctx, id, req.Reason)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	h.AuditLog.OrgRejected(ctx, r, adminID, u.ID, strings.TrimSpace(req.Reason))
	writeJSON(w, http.StatusOK, u)
}

// HandleConfirmBan handles POST /users/{userID}/confirm-ban.
func (h *Handler) HandleConfirmBan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, _, adminID, ok := authz.UserCtx(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("user not found"))
		return
	}
	u, err := h.Trust.ConfirmBan(ctx, id)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	h.AuditLog.BanConfirmed(ctx, r, adminID, u.ID)
	writeJSON(w, http.StatusOK, u)
}

// HandleRevertBan handles POST /users/{userID}/revert-ban.
func (h *Handler) HandleRevertBan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, _, adminID, ok := authz.UserCtx(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("user not found"))
		return
	}
	u, err := h.Trust.RevertBan(ctx, id)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	h.AuditLog.BanReverted(ctx, r, adminID, u.ID)
	writeJSON(w, http.StatusOK, u)
}

// HandleAudit handles GET /audit. Query parameters: subject (hex id),
// category, event, since/until (RFC 3339), limit.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	q := r.URL.Query()
	f := audit.QueryFilter{
		Category:  q.Get("category"),
		EventType: q.Get("event"),
	}
	if s := q.Get("subject"); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			h.ErrLog.BadRequest(w, "subject must be a hex object id")
			return
		}
		f.SubjectID = &id
	}
	if s := q.Get("since"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.ErrLog.BadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		f.StartTime = &ts
	}
	if s := q.Get("until"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.ErrLog.BadRequest(w, "until must be an RFC 3339 timestamp")
			return
		}
		f.EndTime = &ts
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 1 {
			h.ErrLog.BadRequest(w, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	events, err := h.Audit.Query(ctx, f)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.Internal(err))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
