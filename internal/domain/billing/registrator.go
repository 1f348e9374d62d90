package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Registrator is the per-resource-kind strategy that converts a provisioned
// resource into invoice items. Concrete registrators decide how a resource
// of their kind is priced and described; the shared write path (finding the
// target invoice, overlap resolution, persistence) lives in the
// registration service that drives them.
type Registrator interface {
	// Kind returns the resource kind this registrator handles
	Kind() ResourceKind

	// Customer resolves the billing owner of a resource. A resource
	// without a resolvable customer is a data-integrity error.
	Customer(ctx context.Context, source *Resource) (uuid.UUID, error)

	// Sources lists the resources of this kind belonging to a customer
	// that may need billing for the current period
	Sources(ctx context.Context, customerID uuid.UUID) ([]Resource, error)

	// FindExistingItem locates the not-yet-closed item for the resource on
	// the given invoice, or returns nil when none exists
	FindExistingItem(ctx context.Context, source *Resource, invoiceID uuid.UUID) (*InvoiceItem, error)

	// BuildItem prices and describes a new, unpersisted invoice item for
	// the resource over the given interval
	BuildItem(ctx context.Context, source *Resource, invoice *Invoice, start, end time.Time) (*InvoiceItem, error)

	// Name produces the human-readable item description for the resource
	Name(source *Resource) string

	// Details produces the JSON snapshot of the priced attributes persisted
	// on the item
	Details(ctx context.Context, source *Resource) ItemDetails
}

// RegistratorRegistry maps every resource kind to its registrator. The set
// of kinds is closed; registering two handlers for one kind is a wiring
// bug and fails fast.
type RegistratorRegistry struct {
	byKind map[ResourceKind]Registrator
}

// NewRegistratorRegistry creates an empty registry
func NewRegistratorRegistry() *RegistratorRegistry {
	return &RegistratorRegistry{byKind: make(map[ResourceKind]Registrator)}
}

// Register adds a registrator for its kind
func (r *RegistratorRegistry) Register(reg Registrator) error {
	kind := reg.Kind()
	if !kind.IsValid() {
		return shared.NewDomainError("INVALID_KIND", fmt.Sprintf("Unknown resource kind %q", kind))
	}
	if _, exists := r.byKind[kind]; exists {
		return shared.NewDomainError("DUPLICATE_REGISTRATOR",
			fmt.Sprintf("A registrator for kind %q is already registered", kind))
	}
	r.byKind[kind] = reg
	return nil
}

// For returns the registrator handling the given kind
func (r *RegistratorRegistry) For(kind ResourceKind) (Registrator, error) {
	reg, ok := r.byKind[kind]
	if !ok {
		return nil, shared.NewDomainError("NO_REGISTRATOR",
			fmt.Sprintf("No registrator registered for kind %q", kind))
	}
	return reg, nil
}

// Kinds returns the registered resource kinds
func (r *RegistratorRegistry) Kinds() []ResourceKind {
	kinds := make([]ResourceKind, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	return kinds
}

// ResourceLifecycle is the explicit observer interface the orchestration
// layer invokes on resource lifecycle events. Exactly one handler fires
// per event; there is no hidden global dispatch. Each callback resolves to
// one registrator call and one plan-period tracker call, executed in a
// single transaction per resource.
type ResourceLifecycle interface {
	OnResourceCreated(ctx context.Context, resource *Resource, at time.Time) error
	OnPlanChanged(ctx context.Context, resource *Resource, newPlanID uuid.UUID, at time.Time) error
	OnResourceTerminated(ctx context.Context, resource *Resource, at time.Time) error
}
