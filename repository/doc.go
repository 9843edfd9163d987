// Package repository exposes Repository[T], a generic facade over one bun
// model: CRUD, soft delete and restore, filtering, search, date ranges,
// pagination, select options, upsert and transaction binding.
package repository
