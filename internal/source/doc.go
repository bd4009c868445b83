// Package source implements the activity source against the upstream search
// API. Two variants exist behind the same interface: Client hits the
// per-user last-tweets endpoint, Search the advanced-search endpoint.
package source

import "github.com/user/birdwatch/internal/types"

// Compile-time interface compliance checks.
var _ types.ActivitySource = (*Client)(nil)
var _ types.ActivitySource = (*Search)(nil)
