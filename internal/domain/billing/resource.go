package billing

import (
	"time"

	"github.com/cloudmarket/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ResourceKind identifies the type of a billable resource. The set is
// closed: every kind maps to exactly one Registrator.
type ResourceKind string

const (
	KindInstance ResourceKind = "INSTANCE" // compute instance billed by plan
	KindVolume   ResourceKind = "VOLUME"   // block storage billed by size
	KindPackage  ResourceKind = "PACKAGE"  // tenant package billed by template
)

// IsValid checks if the kind is a known ResourceKind
func (k ResourceKind) IsValid() bool {
	switch k {
	case KindInstance, KindVolume, KindPackage:
		return true
	}
	return false
}

// String returns the string representation of ResourceKind
func (k ResourceKind) String() string {
	return string(k)
}

// ResourceRef is the polymorphic reference an invoice item keeps to its
// source resource: a kind tag plus the resource ID.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   uuid.UUID    `json:"id"`
}

// IsZero returns true if the reference points nowhere
func (r ResourceRef) IsZero() bool {
	return r.ID == uuid.Nil
}

// ResourceState is the lifecycle state of a provisioned resource as
// reported by the orchestration layer
type ResourceState string

const (
	ResourceStateOK         ResourceState = "OK" // billable
	ResourceStateErred      ResourceState = "ERRED"
	ResourceStateTerminated ResourceState = "TERMINATED"
)

// Resource is the billing engine's read model of a provisioned resource.
// It is owned by the orchestration layer; the engine only reads it to
// resolve the billing owner, the effective plan and the priced attributes.
type Resource struct {
	shared.BaseEntity
	Kind        ResourceKind
	Name        string
	CustomerID  uuid.UUID
	ProjectID   uuid.UUID
	ProjectName string
	ProjectUUID string
	PlanID      uuid.UUID
	State       ResourceState
	// Priced attributes snapshotted onto invoice items
	Attributes map[string]any `gorm:"-"`
	// Size in allocation units, used by size-priced kinds (e.g. GB for volumes)
	Size int64
}

// Ref returns the polymorphic reference for this resource
func (r *Resource) Ref() ResourceRef {
	return ResourceRef{Kind: r.Kind, ID: r.ID}
}

// IsBillable returns true while the resource accrues charges
func (r *Resource) IsBillable() bool {
	return r.State == ResourceStateOK
}

// Customer is the billing engine's read model of a billing account owner
type Customer struct {
	shared.BaseEntity
	Name           string
	TaxPercent     *int
	PaymentDueDays *int
}

// EffectiveTaxPercent returns the customer's tax percent, falling back to
// the given default when none is set
func (c *Customer) EffectiveTaxPercent(defaultPercent int) int {
	if c.TaxPercent != nil {
		return *c.TaxPercent
	}
	return defaultPercent
}

// ResourceEvent carries a resource lifecycle notification into the engine
type ResourceEvent struct {
	Resource   *Resource
	NewPlanID  uuid.UUID
	OccurredAt time.Time
}
