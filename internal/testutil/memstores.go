package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	reportstore "github.com/dalemusser/straywatch/internal/app/store/reports"
	userstore "github.com/dalemusser/straywatch/internal/app/store/users"
	"github.com/dalemusser/straywatch/internal/app/system/normalize"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/domain/models"
)

// NopTx satisfies txn.Runner without a database: it simply runs fn.
// Workflow tests pair it with the in-memory stores below.
type NopTx struct{}

func (NopTx) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MemReportStore is an in-memory reportstore drop-in for workflow tests.
// All methods mirror the Mongo store's conditional-update semantics,
// including its sentinel errors, under a mutex so concurrency tests can
// race goroutines against it.
type MemReportStore struct {
	mu      sync.Mutex
	seq     int64
	reports map[primitive.ObjectID]models.Report
}

// NewMemReportStore returns an empty in-memory report store.
func NewMemReportStore() *MemReportStore {
	return &MemReportStore{reports: make(map[primitive.ObjectID]models.Report)}
}

func (m *MemReportStore) NextSeq(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *MemReportStore) Insert(ctx context.Context, r models.Report) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.reports[r.ID] = r
	return r, nil
}

func (m *MemReportStore) GetByID(ctx context.Context, id primitive.ObjectID) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return models.Report{}, reportstore.ErrNotFound
	}
	return r, nil
}

func (m *MemReportStore) Claim(ctx context.Context, id, orgID primitive.ObjectID) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return models.Report{}, reportstore.ErrNotFound
	}
	if r.Status != status.ReportSubmitted || r.AssignedOrgID != nil {
		return models.Report{}, reportstore.ErrPrecondition
	}
	org := orgID
	r.Status = status.ReportInReview
	r.AssignedOrgID = &org
	r.UpdatedAt = time.Now().UTC()
	m.reports[id] = r
	return r, nil
}

func (m *MemReportStore) Resolve(ctx context.Context, id, orgID primitive.ObjectID, toStatus string) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return models.Report{}, reportstore.ErrNotFound
	}
	if r.Status != status.ReportInReview || r.AssignedOrgID == nil || *r.AssignedOrgID != orgID {
		return models.Report{}, reportstore.ErrPrecondition
	}
	r.Status = toStatus
	r.UpdatedAt = time.Now().UTC()
	m.reports[id] = r
	return r, nil
}

func (m *MemReportStore) Contest(ctx context.Context, id, creatorID primitive.ObjectID) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return models.Report{}, reportstore.ErrNotFound
	}
	if r.Status != status.ReportConcluded || r.CreatorID != creatorID {
		if r.CreatorID != creatorID {
			return models.Report{}, reportstore.ErrNotFound
		}
		return models.Report{}, reportstore.ErrPrecondition
	}
	r.Status = status.ReportDenied
	r.UpdatedAt = time.Now().UTC()
	m.reports[id] = r
	return r, nil
}

func (m *MemReportStore) DeleteSubmitted(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return reportstore.ErrNotFound
	}
	if r.Status != status.ReportSubmitted {
		return reportstore.ErrPrecondition
	}
	delete(m.reports, id)
	return nil
}

func (m *MemReportStore) ListByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]models.Report, error) {
	return m.list(func(r models.Report) bool { return r.CreatorID == creatorID }), nil
}

func (m *MemReportStore) ListForOrganization(ctx context.Context, orgID primitive.ObjectID) ([]models.Report, error) {
	return m.list(func(r models.Report) bool {
		if r.AssignedOrgID != nil && *r.AssignedOrgID == orgID {
			return true
		}
		return r.Status == status.ReportSubmitted && r.AssignedOrgID == nil
	}), nil
}

func (m *MemReportStore) ListByStatus(ctx context.Context, reportStatus string) ([]models.Report, error) {
	return m.list(func(r models.Report) bool { return r.Status == reportStatus }), nil
}

func (m *MemReportStore) CountByCreator(ctx context.Context, creatorID primitive.ObjectID) (int64, error) {
	return int64(len(m.list(func(r models.Report) bool { return r.CreatorID == creatorID }))), nil
}

func (m *MemReportStore) list(keep func(models.Report) bool) []models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Report
	for _, r := range m.reports {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MemHistoryStore is an in-memory historystore drop-in.
type MemHistoryStore struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
}

// NewMemHistoryStore returns an empty in-memory history store.
func NewMemHistoryStore() *MemHistoryStore {
	return &MemHistoryStore{}
}

func (m *MemHistoryStore) Append(ctx context.Context, e models.HistoryEntry) (models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = primitive.NewObjectID()
	if e.ChangedAt.IsZero() {
		e.ChangedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *MemHistoryStore) ListByReport(ctx context.Context, reportID primitive.ObjectID) ([]models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.HistoryEntry
	for _, e := range m.entries {
		if e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemHistoryStore) DeleteByReport(ctx context.Context, reportID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.ReportID != reportID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// MemMediaStore is an in-memory mediastore drop-in.
type MemMediaStore struct {
	mu    sync.Mutex
	items []models.Media
}

// NewMemMediaStore returns an empty in-memory media store.
func NewMemMediaStore() *MemMediaStore {
	return &MemMediaStore{}
}

func (m *MemMediaStore) InsertMany(ctx context.Context, media []models.Media) ([]models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Media, 0, len(media))
	for _, item := range media {
		item.ID = primitive.NewObjectID()
		if item.UploadedAt.IsZero() {
			item.UploadedAt = time.Now().UTC()
		}
		m.items = append(m.items, item)
		out = append(out, item)
	}
	return out, nil
}

func (m *MemMediaStore) ListByReport(ctx context.Context, reportID primitive.ObjectID) ([]models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Media
	for _, item := range m.items {
		if item.ReportID == reportID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MemMediaStore) DeleteByReport(ctx context.Context, reportID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	for _, item := range m.items {
		if item.ReportID != reportID {
			kept = append(kept, item)
		}
	}
	m.items = kept
	return nil
}

// MemUserStore is an in-memory userstore drop-in.
type MemUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

// NewMemUserStore returns an empty in-memory user store.
func NewMemUserStore() *MemUserStore {
	return &MemUserStore{users: make(map[primitive.ObjectID]models.User)}
}

// Seed inserts a user directly, filling in an ID when missing.
func (m *MemUserStore) Seed(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = u
	return u
}

func (m *MemUserStore) Create(ctx context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalize.Email(u.Email)
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return models.User{}, userstore.ErrDuplicateEmail
		}
	}
	u.ID = primitive.NewObjectID()
	if u.Status == "" {
		u.Status = status.InitialAccountStatus(u.Role)
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = u
	return u, nil
}

func (m *MemUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, userstore.ErrNotFound
	}
	return u, nil
}

func (m *MemUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, userstore.ErrNotFound
}

func (m *MemUserStore) SetStatus(ctx context.Context, id primitive.ObjectID, newStatus string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, userstore.ErrNotFound
	}
	u.Status = newStatus
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *MemUserStore) SetStatusFrom(ctx context.Context, id primitive.ObjectID, from, to string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, userstore.ErrNotFound
	}
	if u.Status != from {
		return models.User{}, userstore.ErrStatusChanged
	}
	u.Status = to
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *MemUserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, phone, address string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, userstore.ErrNotFound
	}
	if fullName != "" {
		u.FullName = fullName
	}
	if phone != "" {
		u.Phone = phone
	}
	if address != "" {
		u.Address = address
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *MemUserStore) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return 0, nil
	}
	delete(m.users, id)
	return 1, nil
}

func (m *MemUserStore) ListByRoleAndStatus(ctx context.Context, role, accountStatus string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.Role == role && u.Status == accountStatus {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
