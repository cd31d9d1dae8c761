// internal/app/features/reports/handler_test.go

package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apierrors "github.com/dalemusser/straywatch/internal/app/features/errors"
	"github.com/dalemusser/straywatch/internal/app/system/blob"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/app/workflow/reportflow"
	"github.com/dalemusser/straywatch/internal/app/workflow/trust"
	"github.com/dalemusser/straywatch/internal/domain/models"
	"github.com/dalemusser/straywatch/internal/testutil"
)

type fixture struct {
	users   *testutil.MemUserStore
	reports *testutil.MemReportStore
	flow    *reportflow.Service
	router  chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := testutil.NewMemUserStore()
	repStore := testutil.NewMemReportStore()
	histStore := testutil.NewMemHistoryStore()
	mediaStore := testutil.NewMemMediaStore()

	local, err := blob.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("blob.NewLocal: %v", err)
	}

	logger := zap.NewNop()
	flow := reportflow.New(repStore, histStore, mediaStore, testutil.NopTx{}, logger)
	trustSvc := trust.New(users, repStore, logger)
	h := NewHandler(flow, trustSvc, local, apierrors.NewErrorLogger(logger), nil, logger)

	return &fixture{users: users, reports: repStore, flow: flow, router: Routes(h)}
}

func mustObjectID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		t.Fatalf("ObjectIDFromHex(%q): %v", hex, err)
	}
	return id
}

func actorFor(t *testing.T, u testutil.TestUser) reportflow.Actor {
	t.Helper()
	return reportflow.Actor{
		ID:            mustObjectID(t, u.ID),
		Role:          u.Role,
		AccountStatus: u.Status,
	}
}

// submitReport seeds a report through the workflow on behalf of u.
func (f *fixture) submitReport(t *testing.T, u testutil.TestUser) reportflow.View {
	t.Helper()
	v, err := f.flow.Submit(context.Background(), actorFor(t, u), reportflow.SubmitInput{
		Description: "Two dogs left tied to a fence",
		Category:    "dog",
		Location:    "Riverside park, north gate",
		Latitude:    -23.55,
		Longitude:   -46.63,
	})
	if err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	return v
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func multipartSubmit(t *testing.T, fileName, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"description": "Kitten abandoned in a cardboard box",
		"category":    "cat",
		"location":    "Elm street bus stop",
		"latitude":    "-23.55",
		"longitude":   "-46.63",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}
	if fileName != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, fileName))
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatalf("part write: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleSubmit(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()

	body, ctype := multipartSubmit(t, "box.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ctype)
	req = testutil.WithUser(req, creator)

	rec := f.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Protocol string `json:"protocol"`
		Status   string `json:"status"`
		Media    []struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"media"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Protocol != "PROT-000001" {
		t.Errorf("protocol = %q, want PROT-000001", resp.Protocol)
	}
	if resp.Status != status.ReportSubmitted {
		t.Errorf("status = %q, want %q", resp.Status, status.ReportSubmitted)
	}
	if len(resp.Media) != 1 || resp.Media[0].Kind != models.MediaKindImage {
		t.Errorf("media = %+v, want one image entry", resp.Media)
	}
}

func TestSubmitByOrganization(t *testing.T) {
	f := newFixture(t)

	body, ctype := multipartSubmit(t, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ctype)
	req = testutil.WithUser(req, testutil.OrganizationUser())

	if rec := f.do(req); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitRequiresCoordinates(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"description": "Kitten abandoned in a cardboard box",
		"category":    "cat",
		"location":    "Elm street bus stop",
	} {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = testutil.WithUser(req, testutil.IndividualUser())

	if rec := f.do(req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitGates(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		user *testutil.TestUser
		want int
	}{
		{"admin refused", ptr(testutil.AdminUser()), http.StatusForbidden},
		{"banned individual refused", ptr(testutil.BannedUser()), http.StatusForbidden},
		{"anonymous refused", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ctype := multipartSubmit(t, "", "", nil)
			req := httptest.NewRequest(http.MethodPost, "/", body)
			req.Header.Set("Content-Type", ctype)
			if tt.user != nil {
				req = testutil.WithUser(req, *tt.user)
			}
			if rec := f.do(req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func ptr(u testutil.TestUser) *testutil.TestUser { return &u }

func TestClaimAndResolve(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()
	org := testutil.OrganizationUser()
	v := f.submitReport(t, creator)
	id := v.Report.ID.Hex()

	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/"+id+"/claim", org)
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d, body %s", rec.Code, rec.Body.String())
	}
	var claimed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &claimed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claimed.Status != status.ReportInReview {
		t.Errorf("status after claim = %q, want %q", claimed.Status, status.ReportInReview)
	}

	// Denial without an observation is a validation failure.
	req = httptest.NewRequest(http.MethodPost, "/"+id+"/deny", strings.NewReader(`{"observation":""}`))
	req = testutil.WithUser(req, org)
	if rec := f.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("deny without observation status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/"+id+"/conclude", strings.NewReader(`{"observation":"animal rescued and sheltered"}`))
	req = testutil.WithUser(req, org)
	rec = f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("conclude status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestClaimConflict(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()
	first := testutil.OrganizationUser()
	second := testutil.OrganizationUser()
	v := f.submitReport(t, creator)
	id := v.Report.ID.Hex()

	if rec := f.do(testutil.NewAuthenticatedRequest(http.MethodPost, "/"+id+"/claim", first)); rec.Code != http.StatusOK {
		t.Fatalf("first claim status = %d", rec.Code)
	}
	if rec := f.do(testutil.NewAuthenticatedRequest(http.MethodPost, "/"+id+"/claim", second)); rec.Code != http.StatusConflict {
		t.Errorf("second claim status = %d, want 409", rec.Code)
	}
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()
	stranger := testutil.IndividualUser()
	v := f.submitReport(t, creator)
	id := v.Report.ID.Hex()

	if rec := f.do(testutil.NewAuthenticatedRequest(http.MethodGet, "/"+id, creator)); rec.Code != http.StatusOK {
		t.Errorf("creator get status = %d, want 200", rec.Code)
	}
	if rec := f.do(testutil.NewAuthenticatedRequest(http.MethodGet, "/"+id, stranger)); rec.Code != http.StatusNotFound {
		t.Errorf("stranger get status = %d, want 404", rec.Code)
	}
	if rec := f.do(testutil.NewAuthenticatedRequest(http.MethodGet, "/not-a-hex-id", creator)); rec.Code != http.StatusNotFound {
		t.Errorf("malformed id status = %d, want 404", rec.Code)
	}
}

func TestMediaDownload(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()
	stranger := testutil.IndividualUser()

	payload := []byte("fake-png-bytes")
	body, ctype := multipartSubmit(t, "evidence.png", "image/png", payload)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ctype)
	req = testutil.WithUser(req, creator)
	rec := f.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID    string `json:"id"`
		Media []struct {
			ID string `json:"id"`
		} `json:"media"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(created.Media) != 1 {
		t.Fatalf("media count = %d, want 1", len(created.Media))
	}
	mediaPath := "/" + created.ID + "/media/" + created.Media[0].ID

	rec = f.do(testutil.NewAuthenticatedRequest(http.MethodGet, mediaPath, creator))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, body %s", rec.Code, rec.Body.String())
	}
	got, _ := io.ReadAll(rec.Body)
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded bytes differ from upload")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/png") {
		t.Errorf("content type = %q, want image/png", ct)
	}

	if rec := f.do(testutil.NewAuthenticatedRequest(http.MethodGet, mediaPath, stranger)); rec.Code != http.StatusNotFound {
		t.Errorf("stranger download status = %d, want 404", rec.Code)
	}
}

func TestContest(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()
	stranger := testutil.IndividualUser()
	org := testutil.OrganizationUser()
	v := f.submitReport(t, creator)
	id := v.Report.ID.Hex()

	ctx := context.Background()
	if _, err := f.flow.Claim(ctx, actorFor(t, org), v.Report.ID); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	if _, err := f.flow.Conclude(ctx, actorFor(t, org), v.Report.ID, "handled"); err != nil {
		t.Fatalf("seed conclude: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/"+id+"/contest", strings.NewReader(`{"observation":"the animal is still there"}`))
	req = testutil.WithUser(req, stranger)
	if rec := f.do(req); rec.Code != http.StatusNotFound {
		t.Errorf("stranger contest status = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/"+id+"/contest", strings.NewReader(`{"observation":"the animal is still there"}`))
	req = testutil.WithUser(req, creator)
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("contest status = %d, body %s", rec.Code, rec.Body.String())
	}
	var contested struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &contested); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if contested.Status != status.ReportDenied {
		t.Errorf("status after contest = %q, want %q", contested.Status, status.ReportDenied)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()
	v := f.submitReport(t, creator)
	id := v.Report.ID.Hex()

	rec := f.do(testutil.NewAuthenticatedRequest(http.MethodDelete, "/"+id, creator))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(testutil.NewAuthenticatedRequest(http.MethodGet, "/"+id, creator)); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestFlagCreator(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()
	org := testutil.OrganizationUser()

	seeded := f.users.Seed(models.User{
		ID:       mustObjectID(t, creator.ID),
		FullName: creator.Name,
		Email:    creator.Email,
		Role:     status.RoleIndividual,
		Status:   status.AccountApproved,
	})
	v := f.submitReport(t, creator)
	if _, err := f.flow.Claim(context.Background(), actorFor(t, org), v.Report.ID); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/"+v.Report.ID.Hex()+"/flag-creator", strings.NewReader(`{"reason":"repeated false reports"}`))
	req = testutil.WithUser(req, org)
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("flag status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := f.users.GetByID(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != status.AccountBanned {
		t.Errorf("creator status = %q, want %q", got.Status, status.AccountBanned)
	}
}

func TestConcludedIsPublic(t *testing.T) {
	f := newFixture(t)
	creator := testutil.IndividualUser()
	org := testutil.OrganizationUser()
	v := f.submitReport(t, creator)

	ctx := context.Background()
	if _, err := f.flow.Claim(ctx, actorFor(t, org), v.Report.ID); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	if _, err := f.flow.Conclude(ctx, actorFor(t, org), v.Report.ID, "rescued"); err != nil {
		t.Fatalf("seed conclude: %v", err)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/concluded", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var list []struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Status != status.ReportConcluded {
		t.Errorf("list = %+v, want one concluded report", list)
	}
}
