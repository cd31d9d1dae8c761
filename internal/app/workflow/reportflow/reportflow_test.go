package reportflow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/straywatch/internal/app/system/faults"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/domain/models"
	"github.com/dalemusser/straywatch/internal/testutil"
)

type env struct {
	svc     *Service
	reports *testutil.MemReportStore
	history *testutil.MemHistoryStore
	media   *testutil.MemMediaStore
}

func newEnv() env {
	reports := testutil.NewMemReportStore()
	history := testutil.NewMemHistoryStore()
	media := testutil.NewMemMediaStore()
	return env{
		svc:     New(reports, history, media, testutil.NopTx{}, zap.NewNop()),
		reports: reports,
		history: history,
		media:   media,
	}
}

func individual() Actor {
	return Actor{ID: primitive.NewObjectID(), Role: status.RoleIndividual, AccountStatus: status.AccountApproved}
}

func organization() Actor {
	return Actor{ID: primitive.NewObjectID(), Role: status.RoleOrganization, AccountStatus: status.AccountApproved}
}

func submit(t *testing.T, e env, creator Actor) View {
	t.Helper()
	v, err := e.svc.Submit(context.Background(), creator, SubmitInput{
		Description: "dog abandoned near the bridge",
		Category:    "dog",
		Location:    "Rua das Flores 10",
		Latitude:    -23.55,
		Longitude:   -46.63,
		Media: []MediaInput{
			{FileName: "a.jpg", ContentType: "image/jpeg"},
			{FileName: "b.mp4", ContentType: "video/mp4"},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return v
}

func TestSubmit(t *testing.T) {
	e := newEnv()
	creator := individual()

	v := submit(t, e, creator)
	if v.Report.Status != status.ReportSubmitted {
		t.Fatalf("status = %q, want submitted", v.Report.Status)
	}
	if !strings.HasPrefix(v.Protocol, "PROT-") || len(v.Protocol) != len("PROT-000001") {
		t.Fatalf("protocol = %q", v.Protocol)
	}
	if len(v.Media) != 2 {
		t.Fatalf("media count = %d, want 2", len(v.Media))
	}
	if v.Media[0].Kind != models.MediaKindImage || v.Media[1].Kind != models.MediaKindVideo {
		t.Fatalf("media kinds = %q/%q", v.Media[0].Kind, v.Media[1].Kind)
	}

	entries, _ := e.history.ListByReport(context.Background(), v.Report.ID)
	if len(entries) != 1 || entries[0].PriorStatus != nil || entries[0].NewStatus != status.ReportSubmitted {
		t.Fatalf("unexpected creation history: %+v", entries)
	}
}

func TestSubmitRefusals(t *testing.T) {
	e := newEnv()

	cases := []struct {
		name string
		act  Actor
		in   SubmitInput
		kind faults.Kind
	}{
		{"admin cannot submit", Actor{ID: primitive.NewObjectID(), Role: status.RoleAdmin, AccountStatus: status.AccountApproved},
			SubmitInput{Description: "x", Location: "y", Latitude: 1, Longitude: 1}, faults.KindAuthorization},
		{"banned creator refused", Actor{ID: primitive.NewObjectID(), Role: status.RoleIndividual, AccountStatus: status.AccountBanned},
			SubmitInput{Description: "x", Location: "y", Latitude: 1, Longitude: 1}, faults.KindAuthorization},
		{"empty description", individual(),
			SubmitInput{Description: "  ", Location: "y", Latitude: 1, Longitude: 1}, faults.KindValidation},
		{"markup-only description", individual(),
			SubmitInput{Description: "<script>alert(1)</script>", Location: "y", Latitude: 1, Longitude: 1}, faults.KindValidation},
		{"empty location", individual(),
			SubmitInput{Description: "x", Location: " ", Latitude: 1, Longitude: 1}, faults.KindValidation},
		{"missing coordinates", individual(),
			SubmitInput{Description: "x", Location: "y"}, faults.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.svc.Submit(context.Background(), tc.act, tc.in)
			if !faults.IsKind(err, tc.kind) {
				t.Fatalf("err = %v, want kind %s", err, tc.kind)
			}
		})
	}
}

func TestClaim(t *testing.T) {
	e := newEnv()
	v := submit(t, e, individual())
	org := organization()

	claimed, err := e.svc.Claim(context.Background(), org, v.Report.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Report.Status != status.ReportInReview {
		t.Fatalf("status = %q, want in_review", claimed.Report.Status)
	}
	if claimed.Report.AssignedOrgID == nil || *claimed.Report.AssignedOrgID != org.ID {
		t.Fatal("assigned org not recorded")
	}

	// A second organization arriving late gets a conflict.
	_, err = e.svc.Claim(context.Background(), organization(), v.Report.ID)
	if !faults.IsKind(err, faults.KindConflict) {
		t.Fatalf("late claim err = %v, want conflict", err)
	}

	_, err = e.svc.Claim(context.Background(), individual(), v.Report.ID)
	if !faults.IsKind(err, faults.KindAuthorization) {
		t.Fatalf("individual claim err = %v, want authorization", err)
	}

	_, err = e.svc.Claim(context.Background(), organization(), primitive.NewObjectID())
	if !faults.IsKind(err, faults.KindNotFound) {
		t.Fatalf("missing report err = %v, want not found", err)
	}
}

func TestClaimConcurrent(t *testing.T) {
	e := newEnv()
	v := submit(t, e, individual())

	const claimants = 8
	var wg sync.WaitGroup
	errs := make([]error, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Claim(context.Background(), organization(), v.Report.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case faults.IsKind(err, faults.KindConflict):
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestResolve(t *testing.T) {
	e := newEnv()
	creator := individual()
	org := organization()
	v := submit(t, e, creator)
	if _, err := e.svc.Claim(context.Background(), org, v.Report.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	t.Run("other org refused", func(t *testing.T) {
		_, err := e.svc.Conclude(context.Background(), organization(), v.Report.ID, "done")
		if !faults.IsKind(err, faults.KindAuthorization) {
			t.Fatalf("err = %v, want authorization", err)
		}
	})

	t.Run("deny requires observation", func(t *testing.T) {
		_, err := e.svc.Deny(context.Background(), org, v.Report.ID, "   ")
		if !faults.IsKind(err, faults.KindValidation) {
			t.Fatalf("err = %v, want validation", err)
		}
	})

	t.Run("conclude requires observation", func(t *testing.T) {
		_, err := e.svc.Conclude(context.Background(), org, v.Report.ID, "   ")
		if !faults.IsKind(err, faults.KindValidation) {
			t.Fatalf("err = %v, want validation", err)
		}
		got, err := e.svc.Get(context.Background(), org, v.Report.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Report.Status != status.ReportInReview {
			t.Fatalf("status = %q, want in_review", got.Report.Status)
		}
	})

	t.Run("conclude", func(t *testing.T) {
		out, err := e.svc.Conclude(context.Background(), org, v.Report.ID, "animal rescued")
		if err != nil {
			t.Fatalf("conclude: %v", err)
		}
		if out.Report.Status != status.ReportConcluded {
			t.Fatalf("status = %q, want concluded", out.Report.Status)
		}
	})

	t.Run("conclude twice conflicts", func(t *testing.T) {
		_, err := e.svc.Conclude(context.Background(), org, v.Report.ID, "again")
		if !faults.IsKind(err, faults.KindConflict) {
			t.Fatalf("err = %v, want conflict", err)
		}
	})
}

func TestContest(t *testing.T) {
	e := newEnv()
	creator := individual()
	org := organization()
	v := submit(t, e, creator)
	ctx := context.Background()
	if _, err := e.svc.Claim(ctx, org, v.Report.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.svc.Conclude(ctx, org, v.Report.ID, "handled"); err != nil {
		t.Fatalf("conclude: %v", err)
	}

	// A stranger contesting sees not-found, not forbidden.
	_, err := e.svc.Contest(ctx, individual(), v.Report.ID, "disagree")
	if !faults.IsKind(err, faults.KindNotFound) {
		t.Fatalf("stranger contest err = %v, want not found", err)
	}

	_, err = e.svc.Contest(ctx, creator, v.Report.ID, " ")
	if !faults.IsKind(err, faults.KindValidation) {
		t.Fatalf("empty observation err = %v, want validation", err)
	}

	out, err := e.svc.Contest(ctx, creator, v.Report.ID, "the animal is still there")
	if err != nil {
		t.Fatalf("contest: %v", err)
	}
	if out.Report.Status != status.ReportDenied {
		t.Fatalf("status = %q, want denied", out.Report.Status)
	}

	// Contesting a non-concluded report conflicts.
	_, err = e.svc.Contest(ctx, creator, v.Report.ID, "again")
	if !faults.IsKind(err, faults.KindConflict) {
		t.Fatalf("second contest err = %v, want conflict", err)
	}
}

func TestDelete(t *testing.T) {
	e := newEnv()
	creator := individual()
	ctx := context.Background()

	t.Run("creator deletes submitted report with cascades", func(t *testing.T) {
		v := submit(t, e, creator)
		if err := e.svc.Delete(ctx, creator, v.Report.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := e.svc.Get(ctx, creator, v.Report.ID); !faults.IsKind(err, faults.KindNotFound) {
			t.Fatalf("get after delete err = %v, want not found", err)
		}
		if entries, _ := e.history.ListByReport(ctx, v.Report.ID); len(entries) != 0 {
			t.Fatalf("history not cascaded: %d entries", len(entries))
		}
		if items, _ := e.media.ListByReport(ctx, v.Report.ID); len(items) != 0 {
			t.Fatalf("media not cascaded: %d items", len(items))
		}
	})

	t.Run("stranger gets not found", func(t *testing.T) {
		v := submit(t, e, creator)
		if err := e.svc.Delete(ctx, individual(), v.Report.ID); !faults.IsKind(err, faults.KindNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})

	t.Run("claimed report cannot be deleted", func(t *testing.T) {
		v := submit(t, e, creator)
		if _, err := e.svc.Claim(ctx, organization(), v.Report.ID); err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := e.svc.Delete(ctx, creator, v.Report.ID); !faults.IsKind(err, faults.KindConflict) {
			t.Fatalf("err = %v, want conflict", err)
		}
	})
}

func TestGetVisibility(t *testing.T) {
	e := newEnv()
	creator := individual()
	org := organization()
	ctx := context.Background()
	v := submit(t, e, creator)

	if _, err := e.svc.Get(ctx, creator, v.Report.ID); err != nil {
		t.Fatalf("creator get: %v", err)
	}
	// Any organization can inspect the available pool.
	if _, err := e.svc.Get(ctx, org, v.Report.ID); err != nil {
		t.Fatalf("org get of available report: %v", err)
	}
	if _, err := e.svc.Get(ctx, individual(), v.Report.ID); !faults.IsKind(err, faults.KindNotFound) {
		t.Fatal("stranger should get not found")
	}

	if _, err := e.svc.Claim(ctx, org, v.Report.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Once claimed, other organizations lose visibility.
	if _, err := e.svc.Get(ctx, organization(), v.Report.ID); !faults.IsKind(err, faults.KindNotFound) {
		t.Fatal("other org should get not found after claim")
	}

	got, err := e.svc.Get(ctx, org, v.Report.ID)
	if err != nil {
		t.Fatalf("assigned org get: %v", err)
	}
	if len(got.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(got.History))
	}
	if len(got.Media) != 2 {
		t.Fatalf("media length = %d, want 2", len(got.Media))
	}
}

func TestListForOrganization(t *testing.T) {
	e := newEnv()
	org := organization()
	ctx := context.Background()

	mine := submit(t, e, individual())
	other := submit(t, e, individual())
	if _, err := e.svc.Claim(ctx, org, mine.Report.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.svc.Claim(ctx, organization(), other.Report.ID); err != nil {
		t.Fatalf("claim by other org: %v", err)
	}
	available := submit(t, e, individual())

	got, err := e.svc.ListForOrganization(ctx, org)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := map[primitive.ObjectID]bool{}
	for _, v := range got {
		ids[v.Report.ID] = true
	}
	if len(got) != 2 || !ids[mine.Report.ID] || !ids[available.Report.ID] {
		t.Fatalf("workload = %d reports %v; want claimed + available only", len(got), ids)
	}

	if _, err := e.svc.ListForOrganization(ctx, individual()); !faults.IsKind(err, faults.KindAuthorization) {
		t.Fatal("individual should not have an organization workload")
	}
}

func TestListOwnAndConcluded(t *testing.T) {
	e := newEnv()
	creator := individual()
	org := organization()
	ctx := context.Background()

	first := submit(t, e, creator)
	submit(t, e, individual())

	own, err := e.svc.ListOwn(ctx, creator)
	if err != nil {
		t.Fatalf("list own: %v", err)
	}
	if len(own) != 1 || own[0].Report.ID != first.Report.ID {
		t.Fatalf("own list = %d entries", len(own))
	}

	if _, err := e.svc.Claim(ctx, org, first.Report.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.svc.Conclude(ctx, org, first.Report.ID, "resolved"); err != nil {
		t.Fatalf("conclude: %v", err)
	}

	concluded, err := e.svc.ListConcluded(ctx)
	if err != nil {
		t.Fatalf("list concluded: %v", err)
	}
	if len(concluded) != 1 || concluded[0].Report.ID != first.Report.ID {
		t.Fatalf("concluded list = %d entries", len(concluded))
	}
}

func TestListDenied(t *testing.T) {
	e := newEnv()
	creator := individual()
	org := organization()
	ctx := context.Background()

	v := submit(t, e, creator)
	if _, err := e.svc.Claim(ctx, org, v.Report.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.svc.Deny(ctx, org, v.Report.ID, "not an abandonment case"); err != nil {
		t.Fatalf("deny: %v", err)
	}

	admin := Actor{ID: primitive.NewObjectID(), Role: status.RoleAdmin, AccountStatus: status.AccountApproved}
	got, err := e.svc.ListDenied(ctx, admin)
	if err != nil {
		t.Fatalf("list denied: %v", err)
	}
	if len(got) != 1 || len(got[0].History) != 3 {
		t.Fatalf("denied list = %d entries, history = %d", len(got), len(got[0].History))
	}

	if _, err := e.svc.ListDenied(ctx, org); !faults.IsKind(err, faults.KindAuthorization) {
		t.Fatal("non-admin should be refused")
	}
}

func TestSubmitByOrganization(t *testing.T) {
	e := newEnv()
	org := organization()

	v, err := e.svc.Submit(context.Background(), org, SubmitInput{
		Description: "colony of cats behind the warehouse",
		Category:    "cat",
		Location:    "Av. Industrial 4",
		Latitude:    -23.52,
		Longitude:   -46.61,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if v.Report.CreatorID != org.ID {
		t.Fatal("creator not recorded")
	}
	if v.Report.Status != status.ReportSubmitted {
		t.Fatalf("status = %q, want submitted", v.Report.Status)
	}
}

func TestListConcludedNeedsCoordinates(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	// Legacy rows without coordinates predate the intake validation;
	// the public map feed must still skip them.
	if _, err := e.reports.Insert(ctx, models.Report{
		Seq:       1,
		Status:    status.ReportConcluded,
		CreatorID: primitive.NewObjectID(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	mapped, err := e.reports.Insert(ctx, models.Report{
		Seq:       2,
		Status:    status.ReportConcluded,
		CreatorID: primitive.NewObjectID(),
		Latitude:  -23.55,
		Longitude: -46.63,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	concluded, err := e.svc.ListConcluded(ctx)
	if err != nil {
		t.Fatalf("list concluded: %v", err)
	}
	if len(concluded) != 1 || concluded[0].Report.ID != mapped.ID {
		t.Fatalf("concluded list = %d entries, want only the mapped report", len(concluded))
	}
}
