package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/dentalab/erpsync/internal/application/sync"
	"github.com/dentalab/erpsync/internal/domain/sync"
	"github.com/dentalab/erpsync/internal/interfaces/http/middleware"
)

// SyncService drives sync runs. Satisfied by the application orchestrator.
type SyncService interface {
	TriggerSync(ctx context.Context, tenantID uuid.UUID, module sync.Module) (*appsync.RunReport, error)
	TriggerAll(ctx context.Context, tenantID uuid.UUID) []appsync.ModuleResult
	Runs(ctx context.Context, tenantID uuid.UUID, module sync.Module, limit int) ([]appsync.RunReport, error)
	Status(ctx context.Context, tenantID uuid.UUID) (*appsync.EngineStatus, error)
}

// RepairService restores broken clinic-to-partner links
type RepairService interface {
	RepairClinicLinks(ctx context.Context, tenantID uuid.UUID) (*appsync.RepairReport, error)
}

// SyncHandler exposes the sync engine over HTTP
type SyncHandler struct {
	BaseHandler
	service       SyncService
	repair        RepairService
	defaultTenant uuid.UUID
	logger        *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service SyncService, repair RepairService, defaultTenant uuid.UUID, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		service:       service,
		repair:        repair,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

// RegisterRoutes registers sync routes on the given router group
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/sync")
	{
		group.POST("", h.TriggerAll)
		group.GET("/status", h.Status)
		group.POST("/repair/clinic-links", h.RepairClinicLinks)
		group.POST("/:module", h.TriggerSync)
		group.GET("/:module/runs", h.Runs)
	}
}

// tenantID resolves the tenant for the request, falling back to the
// configured default when no X-Tenant-ID header is present
func (h *SyncHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := middleware.GetTenantUUID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		id = h.defaultTenant
	}
	if id == uuid.Nil {
		h.BadRequest(c, "tenant identification required")
		return uuid.Nil, false
	}
	return id, true
}

// TriggerSync runs one module synchronously and returns its report
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	module := sync.Module(c.Param("module"))

	report, err := h.service.TriggerSync(c.Request.Context(), tenantID, module)
	if err != nil {
		h.HandleSyncError(c, err)
		return
	}
	h.Success(c, report)
}

// TriggerAll runs every module in canonical order
func (h *SyncHandler) TriggerAll(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	results := h.service.TriggerAll(c.Request.Context(), tenantID)
	h.Success(c, results)
}

// listRunsQuery is the query surface of the run history endpoint
type listRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=200"`
}

// Runs lists the most recent runs of a module, newest first
func (h *SyncHandler) Runs(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	module := sync.Module(c.Param("module"))

	query := listRunsQuery{Limit: 20}
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	reports, err := h.service.Runs(c.Request.Context(), tenantID, module, query.Limit)
	if err != nil {
		h.HandleSyncError(c, err)
		return
	}
	h.Success(c, reports)
}

// Status reports the latest run of every module
func (h *SyncHandler) Status(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	status, err := h.service.Status(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleSyncError(c, err)
		return
	}
	h.Success(c, status)
}

// RepairClinicLinks walks local clinics and restores missing partner mappings
func (h *SyncHandler) RepairClinicLinks(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	report, err := h.repair.RepairClinicLinks(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleSyncError(c, err)
		return
	}

	h.logger.Info("clinic link repair finished",
		zap.Int("clinics_checked", report.ClinicsChecked),
		zap.Int("links_repaired", report.LinksRepaired),
		zap.Int("partners_created", report.PartnersCreated),
		zap.Int("failures", len(report.Failures)))
	h.Success(c, report)
}
