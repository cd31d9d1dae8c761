// internal/app/features/admin/handler_test.go

package admin

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
	"github.com/dalemusser/straywatch/internal/app/store/audit"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/app/workflow/approval"
	"github.com/dalemusser/straywatch/internal/app/workflow/reportflow"
	"github.com/dalemusser/straywatch/internal/app/workflow/trust"
	"github.com/dalemusser/straywatch/internal/domain/models"
	"github.com/dalemusser/straywatch/internal/testutil"
)

type recordingNotifier struct {
	approved []string
	rejected []string
}

func (n *recordingNotifier) OrgApproved(_ context.Context, u models.User) {
	n.approved = append(n.approved, u.Email)
}

func (n *recordingNotifier) OrgRejected(_ context.Context, u models.User, _ string) {
	n.rejected = append(n.rejected, u.Email)
}

type stubAudit struct {
	lastFilter audit.QueryFilter
	events     []audit.Event
}

func (s *stubAudit) Query(_ context.Context, f audit.QueryFilter) ([]audit.Event, error) {
	s.lastFilter = f
	return s.events, nil
}

type fixture struct {
	users    *testutil.MemUserStore
	flow     *reportflow.Service
	notifier *recordingNotifier
	audit    *stubAudit
	router   chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := testutil.NewMemUserStore()
	repStore := testutil.NewMemReportStore()
	histStore := testutil.NewMemHistoryStore()
	mediaStore := testutil.NewMemMediaStore()

	logger := zap.NewNop()
	notifier := &recordingNotifier{}
	auditStub := &stubAudit{}

	flow := reportflow.New(repStore, histStore, mediaStore, testutil.NopTx{}, logger)
	h := NewHandler(
		approval.New(users, notifier, logger),
		trust.New(users, repStore, logger),
		flow,
		auditStub,
		apierrors.NewErrorLogger(logger),
		nil,
		logger,
	)

	return &fixture{users: users, flow: flow, notifier: notifier, audit: auditStub, router: Routes(h)}
}

func (f *fixture) seedOrg(t *testing.T, email, orgStatus string) models.User {
	t.Helper()
	return f.users.Seed(models.User{
		ID:       primitive.NewObjectID(),
		FullName: "Paws and Claws",
		Email:    email,
		Role:     status.RoleOrganization,
		Status:   orgStatus,
	})
}

func (f *fixture) seedBanned(t *testing.T, email string) models.User {
	t.Helper()
	return f.users.Seed(models.User{
		ID:       primitive.NewObjectID(),
		FullName: "Flagged Person",
		Email:    email,
		Role:     status.RoleIndividual,
		Status:   status.AccountBanned,
	})
}

// seedDenied files a report, claims it, and denies it.
func (f *fixture) seedDenied(t *testing.T, creatorID primitive.ObjectID) reportflow.View {
	t.Helper()
	ctx := context.Background()
	v, err := f.flow.Submit(ctx, reportflow.Actor{
		ID:            creatorID,
		Role:          status.RoleIndividual,
		AccountStatus: status.AccountApproved,
	}, reportflow.SubmitInput{
		Description: "Dog left in an empty lot",
		Category:    "dog",
		Location:    "Warehouse district",
		Latitude:    -23.55,
		Longitude:   -46.63,
	})
	if err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	org := reportflow.Actor{ID: primitive.NewObjectID(), Role: status.RoleOrganization, AccountStatus: status.AccountApproved}
	if _, err := f.flow.Claim(ctx, org, v.Report.ID); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	denied, err := f.flow.Deny(ctx, org, v.Report.ID, "no animal found on site")
	if err != nil {
		t.Fatalf("seed deny: %v", err)
	}
	return denied
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func asAdmin(req *http.Request) *http.Request {
	return testutil.WithUser(req, testutil.AdminUser())
}

func TestAdminGate(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/pending", nil)
	if rec := f.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/pending", nil)
	req = testutil.WithUser(req, testutil.OrganizationUser())
	if rec := f.do(req); rec.Code != http.StatusForbidden {
		t.Errorf("organization status = %d, want 403", rec.Code)
	}
}

func TestHandlePending(t *testing.T) {
	f := newFixture(t)
	f.seedOrg(t, "one@ong.org", status.AccountPendingApproval)
	f.seedOrg(t, "two@ong.org", status.AccountPendingApproval)
	f.seedOrg(t, "ignored@ong.org", status.AccountApproved)
	banned := f.seedBanned(t, "flagged@test.com")
	f.seedDenied(t, banned.ID)

	rec := f.do(asAdmin(httptest.NewRequest(http.MethodGet, "/pending", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Organizations []struct {
			Code string `json:"code"`
			User struct {
				Email string `json:"email"`
			} `json:"user"`
		} `json:"organizations"`
		FlaggedUsers []struct {
			Code    string `json:"code"`
			Reports []struct {
				Status string `json:"status"`
			} `json:"reports"`
		} `json:"flagged_users"`
		DeniedReports []struct {
			Code     string `json:"code"`
			Protocol string `json:"protocol"`
			Feedback string `json:"feedback"`
		} `json:"denied_reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Organizations) != 2 {
		t.Fatalf("organizations = %d, want 2", len(resp.Organizations))
	}
	if resp.Organizations[0].Code != "ONG-000001" || resp.Organizations[1].Code != "ONG-000002" {
		t.Errorf("org codes = %q, %q", resp.Organizations[0].Code, resp.Organizations[1].Code)
	}
	if len(resp.FlaggedUsers) != 1 || resp.FlaggedUsers[0].Code != "USR-000001" {
		t.Fatalf("flagged users = %+v, want one USR-000001", resp.FlaggedUsers)
	}
	if len(resp.FlaggedUsers[0].Reports) != 1 {
		t.Errorf("flagged user reports = %d, want 1", len(resp.FlaggedUsers[0].Reports))
	}
	if len(resp.DeniedReports) != 1 {
		t.Fatalf("denied reports = %d, want 1", len(resp.DeniedReports))
	}
	if resp.DeniedReports[0].Code != "DEN-000001" {
		t.Errorf("denied code = %q, want DEN-000001", resp.DeniedReports[0].Code)
	}
	if resp.DeniedReports[0].Feedback != "no animal found on site" {
		t.Errorf("feedback = %q", resp.DeniedReports[0].Feedback)
	}
}

func TestApproveOrg(t *testing.T) {
	f := newFixture(t)
	org := f.seedOrg(t, "pending@ong.org", status.AccountPendingApproval)

	rec := f.do(asAdmin(httptest.NewRequest(http.MethodPost, "/organizations/"+org.ID.Hex()+"/approve", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := f.users.GetByID(context.Background(), org.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != status.AccountApproved {
		t.Errorf("status = %q, want %q", got.Status, status.AccountApproved)
	}
	if len(f.notifier.approved) != 1 || f.notifier.approved[0] != "pending@ong.org" {
		t.Errorf("approval notifications = %v", f.notifier.approved)
	}
}

func TestApproveRejectedOrgConflicts(t *testing.T) {
	f := newFixture(t)
	org := f.seedOrg(t, "rejected@ong.org", status.AccountRejected)

	rec := f.do(asAdmin(httptest.NewRequest(http.MethodPost, "/organizations/"+org.ID.Hex()+"/approve", nil)))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if len(f.notifier.approved) != 0 {
		t.Errorf("unexpected notifications: %v", f.notifier.approved)
	}
}

func TestRejectOrg(t *testing.T) {
	f := newFixture(t)
	org := f.seedOrg(t, "pending@ong.org", status.AccountPendingApproval)

	req := asAdmin(httptest.NewRequest(http.MethodPost, "/organizations/"+org.ID.Hex()+"/reject", strings.NewReader(`{"reason":""}`)))
	if rec := f.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("empty reason status = %d, want 400", rec.Code)
	}

	req = asAdmin(httptest.NewRequest(http.MethodPost, "/organizations/"+org.ID.Hex()+"/reject", strings.NewReader(`{"reason":"incomplete registry documents"}`)))
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := f.users.GetByID(context.Background(), org.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != status.AccountRejected {
		t.Errorf("status = %q, want %q", got.Status, status.AccountRejected)
	}
	if len(f.notifier.rejected) != 1 {
		t.Errorf("rejection notifications = %v", f.notifier.rejected)
	}
}

func TestConfirmBanIsIdempotent(t *testing.T) {
	f := newFixture(t)
	banned := f.seedBanned(t, "flagged@test.com")

	for i := 0; i < 2; i++ {
		rec := f.do(asAdmin(httptest.NewRequest(http.MethodPost, "/users/"+banned.ID.Hex()+"/confirm-ban", nil)))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d, body %s", i+1, rec.Code, rec.Body.String())
		}
	}

	got, err := f.users.GetByID(context.Background(), banned.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != status.AccountBanned {
		t.Errorf("status = %q, want %q", got.Status, status.AccountBanned)
	}
}

func TestRevertBan(t *testing.T) {
	f := newFixture(t)
	banned := f.seedBanned(t, "flagged@test.com")

	rec := f.do(asAdmin(httptest.NewRequest(http.MethodPost, "/users/"+banned.ID.Hex()+"/revert-ban", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := f.users.GetByID(context.Background(), banned.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != status.AccountApproved {
		t.Errorf("status = %q, want %q", got.Status, status.AccountApproved)
	}
}

func TestHandleAudit(t *testing.T) {
	f := newFixture(t)
	subject := primitive.NewObjectID()
	f.audit.events = []audit.Event{{EventType: audit.EventLoginFailed}}

	rec := f.do(asAdmin(httptest.NewRequest(http.MethodGet,
		"/audit?subject="+subject.Hex()+"&category=auth&event=login_failed&limit=10", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := f.audit.lastFilter
	if got.SubjectID == nil || *got.SubjectID != subject {
		t.Errorf("subject filter = %v, want %s", got.SubjectID, subject.Hex())
	}
	if got.Category != audit.CategoryAuth || got.EventType != audit.EventLoginFailed {
		t.Errorf("filter = %+v", got)
	}
	if got.Limit != 10 {
		t.Errorf("limit = %d, want 10", got.Limit)
	}

	rec = f.do(asAdmin(httptest.NewRequest(http.MethodGet, "/audit?subject=nope", nil)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad subject status = %d, want 400", rec.Code)
	}
}
