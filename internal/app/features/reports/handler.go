// internal/app/features/reports/handler.go

// Package reports serves the abandonment report lifecycle over JSON:
// submission with media, the organization workload, claiming,
// resolution, contesting, deletion, and media download.
package reports

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apierrors "github.com/dalemusser/straywatch/internal/app/features/errors"
	"github.com/dalemusser/straywatch/internal/app/system/auditlog"
	"github.com/dalemusser/straywatch/internal/app/system/authz"
	"github.com/dalemusser/straywatch/internal/app/system/blob"
	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/timeouts"
	"github.com/dalemusser/straywatch/internal/app/workflow/reportflow"
	"github.com/dalemusser/straywatch/internal/app/workflow/trust"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// maxSubmitSize caps a report submission including media uploads.
const maxSubmitSize = 64 << 20 // 64 MB

// Handler holds dependencies for the report endpoints.
type Handler struct {
	Flow     *reportflow.Service
	Trust    *trust.Service
	Blob     blob.Store
	ErrLog   *apierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

// NewHandler constructs a reports Handler.
func NewHandler(flow *reportflow.Service, trustSvc *trust.Service, blobStore blob.Store, errLog *apierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Flow:     flow,
		Trust:    trustSvc,
		Blob:     blobStore,
		ErrLog:   errLog,
		AuditLog: audit,
		Log:      logger,
	}
}

func actorFrom(r *http.Request) (reportflow.Actor, bool) {
	role, accountStatus, userID, ok := authz.UserCtx(r)
	if !ok {
		return reportflow.Actor{}, false
	}
	return reportflow.Actor{ID: userID, Role: role, AccountStatus: accountStatus}, true
}

func reportID(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(chi.URLParam(r, "reportID"))
}

type historyEntryResponse struct {
	PriorStatus *string `json:"prior_status,omitempty"`
	NewStatus   string  `json:"new_status"`
	Observation string  `json:"observation,omitempty"`
	ChangedAt   string  `json:"changed_at"`
}

type mediaResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

type reportResponse struct {
	models.Report
	Protocol string                 `json:"protocol"`
	History  []historyEntryResponse `json:"history,omitempty"`
	Media    []mediaResponse        `json:"media,omitempty"`
}

func toResponse(v reportflow.View) reportResponse {
	resp := reportResponse{Report: v.Report, Protocol: v.Protocol}
	for _, e := range v.History {
		resp.History = append(resp.History, historyEntryResponse{
			PriorStatus: e.PriorStatus,
			NewStatus:   e.NewStatus,
			Observation: e.Observation,
			ChangedAt:   e.ChangedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, m := range v.Media {
		resp.Media = append(resp.Media, mediaResponse{ID: m.ID.Hex(), Kind: m.Kind})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeViews(w http.ResponseWriter, views []reportflow.View) {
	out := make([]reportResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSubmit handles POST /reports. The body is multipart form data
// with the report fields plus zero or more "media" file parts.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	actor, ok := actorFrom(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitSize)
	if err := r.ParseMultipartForm(maxSubmitSize); err != nil {
		h.ErrLog.BadRequest(w, "invalid multipart form")
		return
	}

	in := reportflow.SubmitInput{
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Location:    r.FormValue("location"),
	}
	var err error
	if lat := r.FormValue("latitude"); lat != "" {
		if in.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
			h.ErrLog.BadRequest(w, "latitude must be a number")
			return
		}
	}
	if lng := r.FormValue("longitude"); lng != "" {
		if in.Longitude, err = strconv.ParseFloat(lng, 64); err != nil {
			h.ErrLog.BadRequest(w, "longitude must be a number")
			return
		}
	}

	var stored []string
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["media"] {
			name, err := h.storeUpload(ctx, fh)
			if err != nil {
				h.cleanupUploads(ctx, stored)
				h.ErrLog.Respond(w, r, faults.Internal(err))
				return
			}
			stored = append(stored, name)
			in.Media = append(in.Media, reportflow.MediaInput{
				FileName:    name,
				ContentType: fh.Header.Get("Content-Type"),
			})
		}
	}

	v, err := h.Flow.Submit(ctx, actor, in)
	if err != nil {
		h.cleanupUploads(ctx, stored)
		h.ErrLog.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(v))
}

func (h *Handler) storeUpload(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	name := blob.StoredName(fh.Filename)
	if err := h.Blob.Put(ctx, name, f); err != nil {
		return "", err
	}
	return name, nil
}

// cleanupUploads removes stored files after a failed submission.
func (h *Handler) cleanupUploads(ctx context.Context, names []string) {
	for _, name := range names {
		if err := h.Blob.Delete(ctx, name); err != nil {
			h.Log.Warn("orphaned upload cleanup failed", zap.String("name", name), zap.Error(err))
		}
	}
}

// HandleListOwn handles GET /reports/mine.
func (h *Handler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	views, err := h.Flow.ListOwn(r.Context(), actor)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	writeViews(w, views)
}

// HandleWorkload handles GET /reports/workload: the organization's
// claimed reports merged with the unassigned pool.
func (h *Handler) HandleWorkload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	views, err := h.Flow.ListForOrganization(r.Context(), actor)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	writeViews(w, views)
}

// HandleListConcluded handles GET /reports/concluded.
func (h *Handler) HandleListConcluded(w http.ResponseWriter, r *http.Request) {
	views, err := h.Flow.ListConcluded(r.Context())
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	writeViews(w, views)
}

// HandleGet handles GET /reports/{reportID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := reportID(r)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("report not found"))
		return
	}
	v, err := h.Flow.Get(r.Context(), actor, id)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(v))
}

// HandleMedia handles GET /reports/{reportID}/media/{mediaID},
// streaming the stored file to viewers of the report.
func (h *Handler) HandleMedia(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := reportID(r)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("report not found"))
		return
	}
	v, err := h.Flow.Get(r.Context(), actor, id)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}

	mediaID := chi.URLParam(r, "mediaID")
	var found *models.Media
	for i := range v.Media {
		if v.Media[i].ID.Hex() == mediaID {
			found = &v.Media[i]
			break
		}
	}
	if found == nil {
		h.ErrLog.Respond(w, r, faults.NotFound("media not found"))
		return
	}

	rc, err := h.Blob.Open(r.Context(), found.FileName)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.Internal(err))
		return
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(filepath.Ext(found.FileName))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Warn("media stream aborted", zap.String("media_id", mediaID), zap.Error(err))
	}
}

// HandleClaim handles POST /reports/{reportID}/claim.
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, actor reportflow.Actor, id primitive.ObjectID, _ string) (reportflow.View, error) {
		return h.Flow.Claim(ctx, actor, id)
	}, false)
}

// HandleConclude handles POST /reports/{reportID}/conclude.
func (h *Handler) HandleConclude(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, actor reportflow.Actor, id primitive.ObjectID, obs string) (reportflow.View, error) {
		return h.Flow.Conclude(ctx, actor, id, obs)
	}, true)
}

// HandleDeny handles POST /reports/{reportID}/deny.
func (h *Handler) HandleDeny(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, actor reportflow.Actor, id primitive.ObjectID, obs string) (reportflow.View, error) {
		return h.Flow.Deny(ctx, actor, id, obs)
	}, true)
}

// HandleContest handles POST /reports/{reportID}/contest.
func (h *Handler) HandleContest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, actor reportflow.Actor, id primitive.ObjectID, obs string) (reportflow.View, error) {
		return h.Flow.Contest(ctx, actor, id, obs)
	}, true)
}

type observationRequest struct {
	Observation string `json:"observation"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, actor reportflow.Actor, id primitive.ObjectID, obs string) (reportflow.View, error),
	wantsBody bool,
) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actor, ok := actorFrom(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := reportID(r)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("report not found"))
		return
	}

	var obs string
	if wantsBody {
		var req observationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.ErrLog.BadRequest(w, "invalid JSON body")
			return
		}
		obs = req.Observation
	}

	v, err := op(ctx, actor, id, obs)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(v))
}

// HandleDelete handles DELETE /reports/{reportID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actor, ok := actorFrom(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := reportID(r)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("report not found"))
		return
	}
	if err := h.Flow.Delete(ctx, actor, id); err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type flagCreatorRequest struct {
	Reason string `json:"reason"`
}

// HandleFlagCreator handles POST /reports/{reportID}/flag-creator: the
// handling organization (or an administrator) flags the report's
// creator as untrustworthy.
func (h *Handler) HandleFlagCreator(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actor, ok := actorFrom(r)
	if !ok {
		h.ErrLog.Unauthorized(w)
		return
	}
	id, err := reportID(r)
	if err != nil {
		h.ErrLog.Respond(w, r, faults.NotFound("report not found"))
		return
	}
	var req flagCreatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.BadRequest(w, "invalid JSON body")
		return
	}

	target, err := h.Trust.ReportCreator(ctx, trust.Actor{ID: actor.ID, Role: actor.Role}, id, req.Reason)
	if err != nil {
		h.ErrLog.Respond(w, r, err)
		return
	}

	h.AuditLog.UserBanned(ctx, r, actor.ID, target.ID, strings.TrimSpace(req.Reason))
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     target.ID.Hex(),
		"status": target.Status,
	})
}
