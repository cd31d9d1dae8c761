// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/straywatch/internal/app/store/audit"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (register, login, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for governance events (approval, bans, deletion).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for recording audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.SubjectID != nil {
		fields = append(fields, zap.String("subject_id", event.SubjectID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Insert(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// Registered logs a successful account registration.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, role, accountStatus string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventRegistered,
		SubjectID: &userID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"role":   role,
			"status": accountStatus,
		},
	})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, role string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		SubjectID: &userID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"role": role,
		},
	})
}

// LoginFailed logs a failed login attempt. The attempted e-mail is kept
// in details; userID is nil when no account matched.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, userID *primitive.ObjectID, attemptedEmail, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailed,
		SubjectID:     userID,
		IP:            getClientIP(r),
		Success:       false,
		FailureReason: reason,
		Details: map[string]string{
			"attempted_email": attemptedEmail,
		},
	})
}

// LoginBlockedPending logs an organization refused at login because its
// registration is still under review or was rejected.
func (l *Logger) LoginBlockedPending(ctx context.Context, r *http.Request, userID primitive.ObjectID, accountStatus string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginBlockedPending,
		SubjectID:     &userID,
		IP:            getClientIP(r),
		Success:       false,
		FailureReason: "registration under review",
		Details: map[string]string{
			"status": accountStatus,
		},
	})
}

// LoginBlockedBanned logs an organization refused at login due to a ban.
func (l *Logger) LoginBlockedBanned(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginBlockedBanned,
		SubjectID:     &userID,
		IP:            getClientIP(r),
		Success:       false,
		FailureReason: "account banned",
	})
}

// Logout logs a user logout. Accepts the string ID from the session.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		SubjectID: userID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// --- Governance Events ---

// OrgApproved logs an administrator approving an organization.
func (l *Logger) OrgApproved(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventOrgApproved,
		SubjectID: &orgID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// OrgRejected logs an administrator rejecting an organization.
func (l *Logger) OrgRejected(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventOrgRejected,
		SubjectID: &orgID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"reason": reason,
		},
	})
}

// UserBanned logs a creator being flagged and moved to banned standing.
func (l *Logger) UserBanned(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserBanned,
		SubjectID: &targetID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"reason": reason,
		},
	})
}

// BanConfirmed logs an administrator confirming a ban.
func (l *Logger) BanConfirmed(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventBanConfirmed,
		SubjectID: &targetID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// BanReverted logs an administrator lifting a ban.
func (l *Logger) BanReverted(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventBanReverted,
		SubjectID: &targetID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// AccountDeactivated logs a self-service deletion that kept the account
// record because reports reference it.
func (l *Logger) AccountDeactivated(ctx context.Context, r *http.Request, userID primitive.ObjectID, reportCount int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAccountDeactivated,
		SubjectID: &userID,
		ActorID:   &userID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"report_count": int64ToString(reportCount),
		},
	})
}

// AccountDeleted logs a self-service deletion that removed the record.
func (l *Logger) AccountDeleted(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAccountDeleted,
		SubjectID: &userID,
		ActorID:   &userID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

func int64ToString(n int64) string {
	return strconv.FormatInt(n, 10)
}
