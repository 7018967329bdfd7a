// Package rbac holds the capability catalog and the per-request
// authorization check.
//
// A user has exactly one role; the role grants a flat set of capability ids
// stored as role_capabilities edges.  There is no inheritance and no
// wildcard.  Check semantics are ALL-of: a request naming several
// capabilities is allowed only when the role holds every one of them.
package rbac
