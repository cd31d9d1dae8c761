// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"os"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// StrayWatch makes sure the media upload directory exists so the first
// report submission does not fail on a missing path.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := os.MkdirAll(appCfg.StorageLocalPath, 0o755); err != nil {
		logger.Error("media storage path setup failed",
			zap.String("path", appCfg.StorageLocalPath), zap.Error(err))
		return err
	}
	return nil
}
