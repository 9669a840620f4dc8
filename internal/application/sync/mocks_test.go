package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dentalab/erpsync/internal/domain/billing"
	"github.com/dentalab/erpsync/internal/domain/catalog"
	"github.com/dentalab/erpsync/internal/domain/clinic"
	"github.com/dentalab/erpsync/internal/domain/staff"
	"github.com/dentalab/erpsync/internal/domain/sync"
)

// MockERPClient is a mock implementation of sync.ERPClient. SearchRead
// expectations return the record slice to stream through the callback.
type MockERPClient struct {
	mock.Mock
}

func (m *MockERPClient) Authenticate(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockERPClient) CheckCapabilities(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockERPClient) SearchRead(ctx context.Context, query sync.SearchQuery, fn sync.RecordFunc) error {
	args := m.Called(ctx, query)
	if err := args.Error(1); err != nil {
		return err
	}
	for _, record := range args.Get(0).([]sync.ExternalRecord) {
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockERPClient) Create(ctx context.Context, model string, fields map[string]any) (int64, error) {
	args := m.Called(ctx, model, fields)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockERPClient) Write(ctx context.Context, model string, ids []int64, fields map[string]any) error {
	args := m.Called(ctx, model, ids, fields)
	return args.Error(0)
}

// forModel matches any search query against the given ERP model
func forModel(model string) interface{} {
	return mock.MatchedBy(func(q sync.SearchQuery) bool { return q.Model == model })
}

// record builds an external record for tests
func record(id int64, fields map[string]any) sync.ExternalRecord {
	return sync.ExternalRecord{ID: id, Fields: fields}
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

// memMappings is an in-memory IdentityMappingRepository honoring the
// uniqueness invariant, with a bind counter for idempotence assertions
type memMappings struct {
	items map[string]*sync.IdentityMapping
	binds int
}

func newMemMappings() *memMappings {
	return &memMappings{items: make(map[string]*sync.IdentityMapping)}
}

func mappingKey(tenantID uuid.UUID, entityType sync.EntityType, externalID int64) string {
	return fmt.Sprintf("%s|%s|%d", tenantID, entityType, externalID)
}

func (r *memMappings) Resolve(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType, externalID int64) (uuid.UUID, error) {
	m, ok := r.items[mappingKey(tenantID, entityType, externalID)]
	if !ok {
		return uuid.Nil, sync.ErrMappingNotFound
	}
	return m.InternalID, nil
}

func (r *memMappings) Bind(ctx context.Context, mapping *sync.IdentityMapping) error {
	key := mappingKey(mapping.TenantID, mapping.EntityType, mapping.ExternalID)
	if existing, ok := r.items[key]; ok {
		if existing.InternalID == mapping.InternalID {
			return nil
		}
		return &sync.ConflictError{
			EntityType: mapping.EntityType,
			ExternalID: mapping.ExternalID,
			ExistingID: existing.InternalID,
			ClaimedID:  mapping.InternalID,
		}
	}
	copied := *mapping
	r.items[key] = &copied
	r.binds++
	return nil
}

func (r *memMappings) Touch(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType, externalID int64, at time.Time) error {
	m, ok := r.items[mappingKey(tenantID, entityType, externalID)]
	if !ok {
		return sync.ErrMappingNotFound
	}
	m.LastSyncedAt = at
	return nil
}

func (r *memMappings) ListByType(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType) ([]sync.IdentityMapping, error) {
	var out []sync.IdentityMapping
	for _, m := range r.items {
		if m.TenantID == tenantID && m.EntityType == entityType {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMappings) FindStale(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType, before time.Time) ([]sync.IdentityMapping, error) {
	var out []sync.IdentityMapping
	for _, m := range r.items {
		if m.TenantID == tenantID && m.EntityType == entityType && m.LastSyncedAt.Before(before) {
			out = append(out, *m)
		}
	}
	return out, nil
}

// memClinics is an in-memory clinic.Repository with a save counter.
// Setting failSaveFor makes Save fail for the clinic with that name.
type memClinics struct {
	items       map[uuid.UUID]*clinic.Clinic
	saves       int
	failSaveFor string
}

func newMemClinics() *memClinics {
	return &memClinics{items: make(map[uuid.UUID]*clinic.Clinic)}
}

func (r *memClinics) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*clinic.Clinic, error) {
	c, ok := r.items[id]
	if !ok || c.TenantID != tenantID {
		return nil, clinic.ErrClinicNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memClinics) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*clinic.Clinic, error) {
	for _, c := range r.items {
		if c.TenantID == tenantID && strings.EqualFold(c.Email, strings.TrimSpace(email)) && c.Email != "" {
			copied := *c
			return &copied, nil
		}
	}
	return nil, clinic.ErrClinicNotFound
}

func (r *memClinics) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*clinic.Clinic, error) {
	for _, c := range r.items {
		if c.TenantID == tenantID && c.Name == name {
			copied := *c
			return &copied, nil
		}
	}
	return nil, clinic.ErrClinicNotFound
}

func (r *memClinics) List(ctx context.Context, tenantID uuid.UUID) ([]clinic.Clinic, error) {
	var out []clinic.Clinic
	for _, c := range r.items {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memClinics) Save(ctx context.Context, c *clinic.Clinic) error {
	if r.failSaveFor != "" && c.Name == r.failSaveFor {
		return fmt.Errorf("save clinic %q: connection reset by peer", c.Name)
	}
	copied := *c
	r.items[c.ID] = &copied
	r.saves++
	return nil
}

func (r *memClinics) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	list, _ := r.List(ctx, tenantID)
	return int64(len(list)), nil
}

// memServices is an in-memory catalog.Repository with a save counter
type memServices struct {
	items map[uuid.UUID]*catalog.Service
	saves int
}

func newMemServices() *memServices {
	return &memServices{items: make(map[uuid.UUID]*catalog.Service)}
}

func (r *memServices) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Service, error) {
	s, ok := r.items[id]
	if !ok || s.TenantID != tenantID {
		return nil, catalog.ErrServiceNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *memServices) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*catalog.Service, error) {
	for _, s := range r.items {
		if s.TenantID == tenantID && s.Code == code {
			copied := *s
			return &copied, nil
		}
	}
	return nil, catalog.ErrServiceNotFound
}

func (r *memServices) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*catalog.Service, error) {
	for _, s := range r.items {
		if s.TenantID == tenantID && s.Name == name {
			copied := *s
			return &copied, nil
		}
	}
	return nil, catalog.ErrServiceNotFound
}

func (r *memServices) Save(ctx context.Context, s *catalog.Service) error {
	copied := *s
	r.items[s.ID] = &copied
	r.saves++
	return nil
}

func (r *memServices) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	for _, s := range r.items {
		if s.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// memStaff is an in-memory staff.Repository with a save counter
type memStaff struct {
	items map[uuid.UUID]*staff.Member
	saves int
}

func newMemStaff() *memStaff {
	return &memStaff{items: make(map[uuid.UUID]*staff.Member)}
}

func (r *memStaff) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*staff.Member, error) {
	m, ok := r.items[id]
	if !ok || m.TenantID != tenantID {
		return nil, staff.ErrStaffNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *memStaff) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*staff.Member, error) {
	for _, m := range r.items {
		if m.TenantID == tenantID && strings.EqualFold(m.Email, strings.TrimSpace(email)) {
			copied := *m
			return &copied, nil
		}
	}
	return nil, staff.ErrStaffNotFound
}

func (r *memStaff) ListByClinic(ctx context.Context, tenantID, clinicID uuid.UUID) ([]staff.Member, error) {
	var out []staff.Member
	for _, m := range r.items {
		if m.TenantID == tenantID && m.ClinicID == clinicID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memStaff) Save(ctx context.Context, m *staff.Member) error {
	copied := *m
	r.items[m.ID] = &copied
	r.saves++
	return nil
}

func (r *memStaff) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	for _, m := range r.items {
		if m.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// memInvoices is an in-memory billing.Repository with a save counter
type memInvoices struct {
	items map[uuid.UUID]*billing.Invoice
	saves int
}

func newMemInvoices() *memInvoices {
	return &memInvoices{items: make(map[uuid.UUID]*billing.Invoice)}
}

func (r *memInvoices) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := r.items[id]
	if !ok || inv.TenantID != tenantID {
		return nil, billing.ErrInvoiceNotFound
	}
	copied := *inv
	return &copied, nil
}

func (r *memInvoices) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*billing.Invoice, error) {
	for _, inv := range r.items {
		if inv.TenantID == tenantID && inv.Number == number {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, billing.ErrInvoiceNotFound
}

func (r *memInvoices) ListByClinic(ctx context.Context, tenantID, clinicID uuid.UUID) ([]billing.Invoice, error) {
	var out []billing.Invoice
	for _, inv := range r.items {
		if inv.TenantID == tenantID && inv.ClinicID != nil && *inv.ClinicID == clinicID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *memInvoices) Save(ctx context.Context, inv *billing.Invoice) error {
	copied := *inv
	r.items[inv.ID] = &copied
	r.saves++
	return nil
}

func (r *memInvoices) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	for _, inv := range r.items {
		if inv.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// memRuns is an in-memory SyncRunRepository
type memRuns struct {
	items map[uuid.UUID]*sync.SyncRun
}

func newMemRuns() *memRuns {
	return &memRuns{items: make(map[uuid.UUID]*sync.SyncRun)}
}

func (r *memRuns) Create(ctx context.Context, run *sync.SyncRun) error {
	copied := *run
	r.items[run.ID] = &copied
	return nil
}

func (r *memRuns) Finalize(ctx context.Context, run *sync.SyncRun) error {
	stored, ok := r.items[run.ID]
	if !ok {
		return sync.ErrRunNotFound
	}
	if stored.Status.IsTerminal() {
		return sync.ErrRunFinalized
	}
	copied := *run
	r.items[run.ID] = &copied
	return nil
}

func (r *memRuns) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.SyncRun, error) {
	run, ok := r.items[id]
	if !ok || run.TenantID != tenantID {
		return nil, sync.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (r *memRuns) ReadRecent(ctx context.Context, tenantID uuid.UUID, module sync.Module, limit int) ([]sync.SyncRun, error) {
	var out []sync.SyncRun
	for _, run := range r.items {
		if run.TenantID == tenantID && run.Module == module {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (r *memRuns) LastRunPerModule(ctx context.Context, tenantID uuid.UUID) (map[sync.Module]sync.SyncRun, error) {
	latest := make(map[sync.Module]sync.SyncRun)
	for _, run := range r.items {
		if run.TenantID != tenantID {
			continue
		}
		if existing, ok := latest[run.Module]; !ok || run.StartedAt.After(existing.StartedAt) {
			latest[run.Module] = *run
		}
	}
	return latest, nil
}

// fakeLocker is a non-blocking locker with controllable busy keys
type fakeLocker struct {
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) TryLock(ctx context.Context, key string) (sync.RunLock, error) {
	if l.held[key] {
		return nil, sync.ErrBusy
	}
	l.held[key] = true
	return &fakeLock{locker: l, key: key}, nil
}

type fakeLock struct {
	locker *fakeLocker
	key    string
}

func (l *fakeLock) Release(ctx context.Context) error {
	delete(l.locker.held, l.key)
	return nil
}
