// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level, CORS, and request limits. AppConfig is
// everything specific to StrayWatch: the Mongo connection, session
// cookies, media storage, the SMTP relay for decision emails, and the
// audit trail switches.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: straywatch-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Media storage configuration
	StorageLocalPath string // Local directory for report media (e.g., "./uploads/media")

	// Email/SMTP configuration for approval decision notifications
	MailSMTPHost string // SMTP server host (blank disables outbound mail)
	MailSMTPPort int    // SMTP server port
	MailSMTPUser string // SMTP username
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address

	// SiteName appears in notification emails.
	SiteName string

	// Audit trail switches: "all" (db+log), "db", "log", or "off".
	AuditLogAuth  string
	AuditLogAdmin string
}
