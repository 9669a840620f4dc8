package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsync "github.com/dentalab/erpsync/internal/application/sync"
	"github.com/dentalab/erpsync/internal/domain/sync"
	"github.com/dentalab/erpsync/internal/interfaces/http/middleware"
)

// stubSyncService scripts orchestrator outcomes for handler tests
type stubSyncService struct {
	report     *appsync.RunReport
	reports    []appsync.RunReport
	results    []appsync.ModuleResult
	status     *appsync.EngineStatus
	err        error
	lastTenant uuid.UUID
	lastModule sync.Module
	lastLimit  int
}

func (s *stubSyncService) TriggerSync(ctx context.Context, tenantID uuid.UUID, module sync.Module) (*appsync.RunReport, error) {
	s.lastTenant = tenantID
	s.lastModule = module
	return s.report, s.err
}

func (s *stubSyncService) TriggerAll(ctx context.Context, tenantID uuid.UUID) []appsync.ModuleResult {
	s.lastTenant = tenantID
	return s.results
}

func (s *stubSyncService) Runs(ctx context.Context, tenantID uuid.UUID, module sync.Module, limit int) ([]appsync.RunReport, error) {
	s.lastTenant = tenantID
	s.lastModule = module
	s.lastLimit = limit
	return s.reports, s.err
}

func (s *stubSyncService) Status(ctx context.Context, tenantID uuid.UUID) (*appsync.EngineStatus, error) {
	s.lastTenant = tenantID
	return s.status, s.err
}

type stubRepairService struct {
	report *appsync.RepairReport
	err    error
}

func (s *stubRepairService) RepairClinicLinks(ctx context.Context, tenantID uuid.UUID) (*appsync.RepairReport, error) {
	return s.report, s.err
}

func setupSyncRouter(service SyncService, repair RepairService, defaultTenant uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TenantMiddleware(middleware.TenantMiddlewareConfig{DefaultTenantID: defaultTenant}))

	h := NewSyncHandler(service, repair, defaultTenant, zap.NewNop())
	api := engine.Group("/api/v1")
	h.RegisterRoutes(api)
	return engine
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSyncHandler_TriggerSync(t *testing.T) {
	defaultTenant := uuid.New()

	t.Run("returns the finalized run report", func(t *testing.T) {
		service := &stubSyncService{report: &appsync.RunReport{
			RunID:            uuid.New(),
			Module:           "customers",
			Status:           "success",
			RecordsProcessed: 12,
		}}
		engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customers", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeResponse(t, w)
		assert.Equal(t, true, body["success"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "customers", data["module"])
		assert.Equal(t, "success", data["status"])
		assert.Equal(t, float64(12), data["records_processed"])
		assert.Equal(t, sync.ModuleCustomers, service.lastModule)
		assert.Equal(t, defaultTenant, service.lastTenant)
	})

	t.Run("explicit tenant header overrides the default", func(t *testing.T) {
		service := &stubSyncService{report: &appsync.RunReport{Module: "customers", Status: "success"}}
		engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

		otherTenant := uuid.New()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customers", nil)
		req.Header.Set("X-Tenant-ID", otherTenant.String())
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, otherTenant, service.lastTenant)
	})

	t.Run("busy module responds with conflict", func(t *testing.T) {
		service := &stubSyncService{err: sync.ErrBusy}
		engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customers", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		body := decodeResponse(t, w)
		errInfo := body["error"].(map[string]any)
		assert.Equal(t, "ERR_SYNC_BUSY", errInfo["code"])
	})

	t.Run("unknown module responds with not found", func(t *testing.T) {
		service := &stubSyncService{err: sync.ErrUnknownModule}
		engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/ledger", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decodeResponse(t, w)
		errInfo := body["error"].(map[string]any)
		assert.Equal(t, "ERR_UNKNOWN_MODULE", errInfo["code"])
	})

	t.Run("unreachable ERP responds with bad gateway", func(t *testing.T) {
		service := &stubSyncService{err: sync.ErrTransport}
		engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customers", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("malformed tenant header rejected", func(t *testing.T) {
		service := &stubSyncService{}
		engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customers", nil)
		req.Header.Set("X-Tenant-ID", "not-a-uuid")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_TriggerAll(t *testing.T) {
	defaultTenant := uuid.New()

	service := &stubSyncService{results: []appsync.ModuleResult{
		{Module: "customers", Report: &appsync.RunReport{Status: "success"}},
		{Module: "staff", Error: sync.ErrBusy.Error()},
	}}
	engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeResponse(t, w)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, "customers", first["module"])
	second := data[1].(map[string]any)
	assert.NotEmpty(t, second["error"])
}

func TestSyncHandler_Runs(t *testing.T) {
	defaultTenant := uuid.New()

	t.Run("lists recent runs with a limit", func(t *testing.T) {
		service := &stubSyncService{reports: []appsync.RunReport{
			{Module: "products", Status: "success"},
			{Module: "products", Status: "partial"},
		}}
		engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/products/runs?limit=5", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 5, service.lastLimit)
		assert.Equal(t, sync.ModuleProducts, service.lastModule)
		body := decodeResponse(t, w)
		assert.Len(t, body["data"].([]any), 2)
	})

	t.Run("defaults the limit when absent", func(t *testing.T) {
		service := &stubSyncService{}
		engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/products/runs", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 20, service.lastLimit)
	})

	t.Run("rejects a non-numeric limit", func(t *testing.T) {
		engine := setupSyncRouter(&stubSyncService{}, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/products/runs?limit=abc", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects a zero limit", func(t *testing.T) {
		engine := setupSyncRouter(&stubSyncService{}, &stubRepairService{}, defaultTenant)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/products/runs?limit=0", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeResponse(t, w)
		errInfo := body["error"].(map[string]any)
		assert.Equal(t, "ERR_VALIDATION", errInfo["code"])
	})
}

func TestSyncHandler_Status(t *testing.T) {
	defaultTenant := uuid.New()

	service := &stubSyncService{status: &appsync.EngineStatus{Modules: []appsync.ModuleStatus{
		{Module: "customers", LastRun: &appsync.RunReport{Status: "success"}},
		{Module: "staff"},
	}}}
	engine := setupSyncRouter(service, &stubRepairService{}, defaultTenant)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeResponse(t, w)
	data := body["data"].(map[string]any)
	modules := data["modules"].([]any)
	require.Len(t, modules, 2)
}

func TestSyncHandler_RepairClinicLinks(t *testing.T) {
	defaultTenant := uuid.New()

	repair := &stubRepairService{report: &appsync.RepairReport{
		ClinicsChecked:  4,
		LinksRepaired:   2,
		PartnersCreated: 1,
		Failures:        []string{"Clinica Sur: remote error"},
	}}
	engine := setupSyncRouter(&stubSyncService{}, repair, defaultTenant)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/repair/clinic-links", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeResponse(t, w)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(4), data["clinics_checked"])
	assert.Equal(t, float64(2), data["links_repaired"])
	assert.Equal(t, float64(1), data["partners_created"])
}

func TestSyncHandler_NoTenantConfigured(t *testing.T) {
	engine := setupSyncRouter(&stubSyncService{}, &stubRepairService{}, uuid.Nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customers", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
