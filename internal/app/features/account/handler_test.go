// internal/app/features/account/handler_test.go

package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apierrors "github.com/dalemusser/straywatch/internal/app/features/errors"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/app/workflow/accountflow"
	"github.com/dalemusser/straywatch/internal/domain/models"
	"github.com/dalemusser/straywatch/internal/testutil"
)

type fixture struct {
	users   *testutil.MemUserStore
	reports *testutil.MemReportStore
	router  chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := testutil.NewMemUserStore()
	reports := testutil.NewMemReportStore()
	logger := zap.NewNop()

	flow := accountflow.New(users, reports, testutil.NopTx{}, logger)
	h := NewHandler(users, flow, nil, apierrors.NewErrorLogger(logger), nil, logger)

	return &fixture{users: users, reports: reports, router: Routes(h)}
}

func (f *fixture) seedUser(t *testing.T, u testutil.TestUser) models.User {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		t.Fatalf("ObjectIDFromHex: %v", err)
	}
	return f.users.Seed(models.User{
		ID:       id,
		FullName: u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
		Phone:    "555-0100",
	})
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGet(t *testing.T) {
	f := newFixture(t)
	user := testutil.IndividualUser()
	f.seedUser(t, user)

	rec := f.do(testutil.NewAuthenticatedRequest(http.MethodGet, "/me", user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got models.User
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Email != user.Email {
		t.Errorf("email = %q, want %q", got.Email, user.Email)
	}

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/me", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
}

func TestHandleUpdate(t *testing.T) {
	f := newFixture(t)
	user := testutil.IndividualUser()
	seeded := f.seedUser(t, user)

	req := httptest.NewRequest(http.MethodPut, "/me", strings.NewReader(`{"full_name":"Renamed Person","address":"12 Oak Lane"}`))
	req = testutil.WithUser(req, user)
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := f.users.GetByID(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FullName != "Renamed Person" {
		t.Errorf("full name = %q", got.FullName)
	}
	if got.Address != "12 Oak Lane" {
		t.Errorf("address = %q", got.Address)
	}
	// Untouched fields keep their values.
	if got.Phone != "555-0100" {
		t.Errorf("phone = %q, want unchanged", got.Phone)
	}
}

func TestHandleUpdateRefusals(t *testing.T) {
	f := newFixture(t)

	t.Run("empty update", func(t *testing.T) {
		user := testutil.IndividualUser()
		f.seedUser(t, user)
		req := httptest.NewRequest(http.MethodPut, "/me", strings.NewReader(`{}`))
		req = testutil.WithUser(req, user)
		if rec := f.do(req); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("banned account", func(t *testing.T) {
		user := testutil.BannedUser()
		f.seedUser(t, user)
		req := httptest.NewRequest(http.MethodPut, "/me", strings.NewReader(`{"full_name":"New Name"}`))
		req = testutil.WithUser(req, user)
		if rec := f.do(req); rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestHandleDeleteWithoutReports(t *testing.T) {
	f := newFixture(t)
	user := testutil.IndividualUser()
	seeded := f.seedUser(t, user)

	rec := f.do(testutil.NewAuthenticatedRequest(http.MethodDelete, "/me", user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res accountflow.DeleteResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Deleted || res.ReportCount != 0 {
		t.Errorf("result = %+v, want hard delete", res)
	}
	if _, err := f.users.GetByID(context.Background(), seeded.ID); err == nil {
		t.Errorf("user still present after delete")
	}
}

func TestHandleDeleteWithReports(t *testing.T) {
	f := newFixture(t)
	user := testutil.IndividualUser()
	seeded := f.seedUser(t, user)

	if _, err := f.reports.Insert(context.Background(), models.Report{
		Description: "Abandoned puppy near the overpass",
		Status:      status.ReportSubmitted,
		CreatorID:   seeded.ID,
	}); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	rec := f.do(testutil.NewAuthenticatedRequest(http.MethodDelete, "/me", user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res accountflow.DeleteResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Deleted || res.ReportCount != 1 {
		t.Errorf("result = %+v, want deactivation with one retained report", res)
	}

	got, err := f.users.GetByID(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != status.AccountBanned {
		t.Errorf("status = %q, want %q (deactivated marker)", got.Status, status.AccountBanned)
	}
}
