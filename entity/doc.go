// Package entity derives per-type metadata (fillable, hidden and date
// columns, filter allowlist and registry, relations, soft delete capability)
// from bun models and optional declaration interfaces.
package entity
