// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	accountfeature "github.com/dalemusser/straywatch/internal/app/features/account"
	adminfeature "github.com/dalemusser/straywatch/internal/app/features/admin"
	authfeature "github.com/dalemusser/straywatch/internal/app/features/auth"
	errorsfeature "github.com/dalemusser/straywatch/internal/app/features/errors"
	healthfeature "github.com/dalemusser/straywatch/internal/app/features/health"
	reportsfeature "github.com/dalemusser/straywatch/internal/app/features/reports"
	auditstore "github.com/dalemusser/straywatch/internal/app/store/audit"
	historystore "github.com/dalemusser/straywatch/internal/app/store/history"
	mediastore "github.com/dalemusser/straywatch/internal/app/store/media"
	reportstore "github.com/dalemusser/straywatch/internal/app/store/reports"
	userstore "github.com/dalemusser/straywatch/internal/app/store/users"
	"github.com/dalemusser/straywatch/internal/app/system/auditlog"
	"github.com/dalemusser/straywatch/internal/app/system/auth"
	"github.com/dalemusser/straywatch/internal/app/system/blob"
	"github.com/dalemusser/straywatch/internal/app/system/mailer"
	"github.com/dalemusser/straywatch/internal/app/system/ratelimit"
	"github.com/dalemusser/straywatch/internal/app/system/txn"
	"github.com/dalemusser/straywatch/internal/app/workflow/accountflow"
	"github.com/dalemusser/straywatch/internal/app/workflow/approval"
	"github.com/dalemusser/straywatch/internal/app/workflow/reportflow"
	"github.com/dalemusser/straywatch/internal/app/workflow/trust"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. StrayWatch builds the stores
// over the shared Mongo database, the workflow services over the
// stores, and mounts one feature router per application area: health,
// authentication, reports, the administrator console, and account
// self-service.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	errLog := errorsfeature.NewErrorLogger(logger)

	// Stores over the shared database.
	users := userstore.New(deps.MongoDatabase)
	reports := reportstore.New(deps.MongoDatabase)
	history := historystore.New(deps.MongoDatabase)
	media := mediastore.New(deps.MongoDatabase)
	audit := auditstore.New(deps.MongoDatabase)

	auditLog := auditlog.New(audit, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	// Multi-document writes (report + history + media) share one runner.
	tx := txn.NewMongo(deps.MongoClient, logger)

	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		Username: appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
	}, logger)

	blobStore, err := blob.NewLocal(appCfg.StorageLocalPath)
	if err != nil {
		logger.Error("media storage init failed", zap.Error(err))
		return nil, err
	}

	// Workflow services.
	flow := reportflow.New(reports, history, media, tx, logger)
	approvalSvc := approval.New(users, approval.NewMailNotifier(mail, appCfg.SiteName, logger), logger)
	trustSvc := trust.New(users, reports, logger)
	accountSvc := accountflow.New(users, reports, tx, logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication, with login attempts throttled per IP and account.
	authHandler := authfeature.NewHandler(users, sessionMgr, ratelimit.NewLoginLimiter(), errLog, auditLog, logger)
	r.Mount("/auth", authfeature.Routes(authHandler))

	// Report lifecycle
	reportsHandler := reportsfeature.NewHandler(flow, trustSvc, blobStore, errLog, auditLog, logger)
	r.Mount("/reports", reportsfeature.Routes(reportsHandler))

	// Administrator console
	adminHandler := adminfeature.NewHandler(approvalSvc, trustSvc, flow, audit, errLog, auditLog, logger)
	r.Mount("/admin", adminfeature.Routes(adminHandler))

	// Account self-service
	accountHandler := accountfeature.NewHandler(users, accountSvc, sessionMgr, errLog, auditLog, logger)
	r.Mount("/account", accountfeature.Routes(accountHandler))

	return r, nil
}
