// Package types defines the relationship data model shared by the relation
// engine, the storage backends, and the CLI: card references, parent and
// children records, the scoped key-value store contract, sync-queue entries,
// and badge projections.
package types
