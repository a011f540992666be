// Package carrier contains the Carrier bounded context.
// It owns the per-store ranked list of shipping carriers and the rules that
// keep it consistent with the upstream carrier API, admin reordering and CSV
// priority uploads.
//
// Key concepts:
//   - Carrier: a shipping option offered to one store, ranked by Priority
//   - Candidate: a carrier as reported by the upstream API, before reconciliation
//   - Reconcile: merges upstream candidates into the persisted list
//   - Renumber: restores the dense 1..K priority sequence of active carriers
//
// Design Pattern: Ports & Adapters
//   - Repository, StoreRegistry, Fetcher and StoreLocker are ports defined here
//   - Adapters live in the infrastructure layer
package carrier
