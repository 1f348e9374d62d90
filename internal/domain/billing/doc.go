// Package billing implements the billing reconciliation engine of the
// marketplace: it turns resource provisioning events (create, plan switch,
// terminate, metered usage) into an accurate, non-overlapping, per-month set
// of invoice line items, one invoice per customer per calendar month.
//
// Key aggregates:
//   - Invoice: the monthly, per-customer aggregate of billable line items
//   - InvoiceItem: one priced interval of resource consumption
//   - ResourcePlanPeriod: a time interval during which a plan was in effect
//
// The Registrator protocol converts provisioned resources into invoice
// items; overlap resolution guarantees that every calendar day on which two
// configurations briefly coexisted is billed exactly once, at the higher of
// the two prices.
//
// Plans, customers and resources are read-only reference data owned by the
// catalog and orchestration layers; this package never mutates them beyond
// the billing-specific state it tracks itself.
package billing
