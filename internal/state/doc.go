// Package state provides the filesystem-backed monitoring state: the
// watch-list of accounts and the record of already-alerted events.
package state

import "github.com/user/birdwatch/internal/types"

// Compile-time interface compliance check.
var _ types.WatchListStore = (*WatchList)(nil)
