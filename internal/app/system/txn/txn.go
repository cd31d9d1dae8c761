// internal/app/system/txn/txn.go

// Package txn wraps multi-step mutations in one atomic unit of work.
// Every workflow operation that touches more than one document (report +
// history, report + media, user + audit) runs through a Runner so a partial
// write can never be observed.
package txn

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Runner executes fn as a single atomic unit. If fn returns an error the
// unit is rolled back and the error propagated unchanged.
type Runner interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}

// Mongo is a Runner backed by MongoDB multi-document transactions.
// On deployments that do not support transactions (standalone servers,
// some DocumentDB versions) it degrades to running fn directly, once,
// outside a transaction.
type Mongo struct {
	client *mongo.Client
	log    *zap.Logger
}

// NewMongo creates a transaction runner over the given client.
func NewMongo(client *mongo.Client, logger *zap.Logger) *Mongo {
	return &Mongo{client: client, log: logger}
}

// Within runs fn inside a session transaction. The context passed to fn is
// the session context; all store calls inside fn must use it.
func (m *Mongo) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			m.log.Warn("sessions unsupported by server, running without transaction", zap.Error(err))
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		m.log.Warn("transactions unsupported by server, running without transaction", zap.Error(err))
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions (standalone deployments, restricted hosted
// servers). Matches both the structured command error codes and the
// message text older drivers surface.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if ok := asCommandError(err, &cmdErr); ok {
		// 20 IllegalOperation on standalone, 51 IllegalOperation,
		// 263 OperationNotSupportedInTransaction.
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	has := func(s string) bool { return strings.Contains(msg, s) }
	if has("transaction") && (has("replica set") || has("session") || has("illegal operation")) {
		return true
	}
	if has("session") && has("not supported") {
		return true
	}
	return false
}

func asCommandError(err error, target *mongo.CommandError) bool {
	if ce, ok := err.(mongo.CommandError); ok {
		*target = ce
		return true
	}
	return false
}
