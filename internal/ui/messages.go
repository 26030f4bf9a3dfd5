// Package ui provides the Bubble Tea TUI for minifeed: a one-card-at-a-time
// pager over the feed, an item detail view and a debug overlay.
package ui

import (
	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/interact"
	"github.com/abelbrown/minifeed/internal/pager"
)

// PageLoaded is sent when a feed page request settles.
type PageLoaded struct {
	Result pager.Result
}

// ItemLoaded is sent when an item detail request settles.
type ItemLoaded struct {
	ID   int64
	Item *api.Item
	Err  error
}

// RelationSettled is sent when a like/favorite upsert settles. OK false
// means the optimistic state was rolled back.
type RelationSettled struct {
	Key interact.Key
	OK  bool
	Err error
}
