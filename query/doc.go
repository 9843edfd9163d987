// Package query composes bun select queries from request parameters: scope
// selection over soft-deleted rows, allowlisted filter dispatch, multi-token
// search, relation aware sorting and attribute whitelisting.
package query
