package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestContext returns a context that expires with the test deadline,
// with a sensible fallback when no deadline is set.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	deadline, ok := t.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	t.Cleanup(cancel)
	return ctx
}

// SetupTestDB connects to the MongoDB instance named by
// STRAYWATCH_TEST_MONGO_URI and returns a per-test database that is
// dropped on cleanup. Tests that need a real database are skipped when
// the variable is unset.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("STRAYWATCH_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STRAYWATCH_TEST_MONGO_URI not set; skipping database test")
	}

	ctx := TestContext(t)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect to test mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("ping test mongo: %v", err)
	}

	db := client.Database(fmt.Sprintf("straywatch_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}
