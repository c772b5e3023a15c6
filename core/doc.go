// Package core defines the domain types and collaborator contracts shared by
// the webhook ingestion pipeline, the action execution layer, and the store
// implementations. It holds no I/O of its own.
package core
