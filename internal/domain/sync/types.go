package sync

// ---------------------------------------------------------------------------
// EntityType
// ---------------------------------------------------------------------------

// EntityType identifies the kind of internal entity an identity mapping or
// synchronizer deals with.
type EntityType string

const (
	// EntityTypeClinic represents a clinic (an ERP partner with customer rank)
	EntityTypeClinic EntityType = "clinic"
	// EntityTypeService represents a lab service (an ERP sellable product)
	EntityTypeService EntityType = "service"
	// EntityTypeStaff represents a clinic staff member (an ERP child contact)
	EntityTypeStaff EntityType = "staff"
	// EntityTypeInvoice represents a customer invoice (an ERP account move)
	EntityTypeInvoice EntityType = "invoice"
)

// IsValid returns true if the entity type is known
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeClinic, EntityTypeService, EntityTypeStaff, EntityTypeInvoice:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// Module
// ---------------------------------------------------------------------------

// Module names a sync module as exposed on the trigger surface and recorded
// in the run log. Each module drives exactly one entity type.
type Module string

const (
	// ModuleCustomers syncs ERP partners into clinics
	ModuleCustomers Module = "customers"
	// ModuleProducts syncs ERP products into lab services
	ModuleProducts Module = "products"
	// ModuleStaff syncs ERP child contacts into clinic staff
	ModuleStaff Module = "staff"
	// ModuleInvoices syncs posted ERP customer invoices
	ModuleInvoices Module = "invoices"
)

// AllModules lists the modules in their canonical execution order.
// Customers run first so that staff and invoices can resolve clinic mappings.
func AllModules() []Module {
	return []Module{ModuleCustomers, ModuleStaff, ModuleProducts, ModuleInvoices}
}

// IsValid returns true if the module name is known
func (m Module) IsValid() bool {
	switch m {
	case ModuleCustomers, ModuleProducts, ModuleStaff, ModuleInvoices:
		return true
	default:
		return false
	}
}

// EntityType returns the entity type a module synchronizes
func (m Module) EntityType() EntityType {
	switch m {
	case ModuleCustomers:
		return EntityTypeClinic
	case ModuleProducts:
		return EntityTypeService
	case ModuleStaff:
		return EntityTypeStaff
	case ModuleInvoices:
		return EntityTypeInvoice
	default:
		return ""
	}
}

// String returns the string representation of Module
func (m Module) String() string {
	return string(m)
}

// ---------------------------------------------------------------------------
// RunStatus
// ---------------------------------------------------------------------------

// RunStatus represents the lifecycle state of a sync run
type RunStatus string

const (
	// RunStatusRunning indicates the run is in progress
	RunStatusRunning RunStatus = "running"
	// RunStatusSuccess indicates every record was processed without failure
	RunStatusSuccess RunStatus = "success"
	// RunStatusPartial indicates at least one record succeeded and one failed
	RunStatusPartial RunStatus = "partial"
	// RunStatusFailed indicates the run failed as a whole
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true once the status can no longer change
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of RunStatus
func (s RunStatus) String() string {
	return string(s)
}
