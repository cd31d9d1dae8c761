// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	auditstore "github.com/dalemusser/straywatch/internal/app/store/audit"
	historystore "github.com/dalemusser/straywatch/internal/app/store/history"
	mediastore "github.com/dalemusser/straywatch/internal/app/store/media"
	reportstore "github.com/dalemusser/straywatch/internal/app/store/reports"
	userstore "github.com/dalemusser/straywatch/internal/app/store/users"
	"github.com/dalemusser/straywatch/internal/app/system/timeouts"
)

// ConnectDB establishes the MongoDB connection used for all stores.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		logger.Error("mongo connect failed", zap.Error(err))
		return DBDeps{}, err
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, timeouts.Ping())
	defer cancelPing()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", zap.Error(err))
		return DBDeps{}, err
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the indexes every store relies on.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	ensure := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"users", userstore.New(db).EnsureIndexes},
		{"reports", reportstore.New(db).EnsureIndexes},
		{"report_history", historystore.New(db).EnsureIndexes},
		{"report_media", mediastore.New(db).EnsureIndexes},
		{"audit_events", auditstore.New(db).EnsureIndexes},
	}
	for _, e := range ensure {
		if err := e.fn(ctx); err != nil {
			logger.Error("index creation failed", zap.String("store", e.name), zap.Error(err))
			return err
		}
	}
	logger.Info("database indexes ensured")
	return nil
}
