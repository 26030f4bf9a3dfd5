// Package interact runs optimistic like/favorite/follow toggles.
//
// Toggle flips the local state at once and hands back a Command. Commit sends
// the upsert; on failure the state is rolled back and the error kept for the
// key. Only one request per key may be in flight; a second toggle for the same
// key is refused until the first settles.
package interact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/logging"
	"github.com/abelbrown/minifeed/internal/otel"
)

// ErrInFlight is returned by Toggle while a request for the key is pending.
var ErrInFlight = errors.New("interact: request already in flight")

// Entity types used by the convenience toggles.
const (
	EntityItem = "item"
	EntityUser = "user"
)

// Upserter sends relation upserts. *api.Client satisfies it.
type Upserter interface {
	UpsertRelation(ctx context.Context, r api.RelationRequest, idempotencyKey string) error
}

// Key identifies one relation.
type Key struct {
	EntityType string
	EntityID   int64
	Relation   api.RelationType
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%d-%s", k.EntityType, k.EntityID, k.Relation)
}

// ItemKey is the key of a relation between the user and a feed item.
func ItemKey(id int64, rel api.RelationType) Key {
	return Key{EntityType: EntityItem, EntityID: id, Relation: rel}
}

// Controller holds the optimistic relation state of one pager.
type Controller struct {
	mu          sync.Mutex
	up          Upserter
	now         func() time.Time
	lastMillis  int64
	state       map[Key]bool
	pending     map[Key]bool
	errs        map[Key]error
	onCommitted func(k Key, active bool)
	events      *otel.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the time source used for idempotency keys.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithOnCommitted registers a hook called after every confirmed upsert.
func WithOnCommitted(fn func(k Key, active bool)) Option {
	return func(c *Controller) { c.onCommitted = fn }
}

// WithEvents records toggles in the observability log.
func WithEvents(l *otel.Logger) Option {
	return func(c *Controller) { c.events = l }
}

// New creates a Controller sending through up.
func New(up Upserter, opts ...Option) *Controller {
	c := &Controller{
		up:      up,
		now:     time.Now,
		state:   make(map[Key]bool),
		pending: make(map[Key]bool),
		errs:    make(map[Key]error),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command is one optimistic toggle awaiting confirmation.
type Command struct {
	Key      Key
	Applied  bool // state shown immediately
	Rollback bool // state restored on failure

	c       *Controller
	idemKey string
	once    sync.Once
	ok      bool
}

// IdempotencyKey is the header value the upsert is sent with.
func (cmd *Command) IdempotencyKey() string { return cmd.idemKey }

// Commit sends the upsert and settles the key. The result is authoritative:
// false means the state was rolled back. Calling Commit again returns the
// first result without sending.
func (cmd *Command) Commit(ctx context.Context) bool {
	cmd.once.Do(func() { cmd.ok = cmd.c.commit(ctx, cmd) })
	return cmd.ok
}

// Toggle applies desired to key immediately and returns the command that
// confirms it. It returns ErrInFlight without touching state when a request
// for key is pending.
func (c *Controller) Toggle(k Key, desired bool) (*Command, error) {
	c.mu.Lock()
	if c.pending[k] {
		c.mu.Unlock()
		c.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindRelationBusy, Comp: "interact", Relation: k.String()})
		return nil, ErrInFlight
	}
	cmd := &Command{
		Key:      k,
		Applied:  desired,
		Rollback: c.state[k],
		c:        c,
		idemKey:  api.IdempotencyKey(k.EntityType, k.EntityID, k.Relation, c.nextStampLocked()),
	}
	c.state[k] = desired
	c.pending[k] = true
	c.mu.Unlock()

	c.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRelationApply, Comp: "interact", Relation: k.String(), Msg: string(api.StatusOf(desired))})
	return cmd, nil
}

func (c *Controller) commit(ctx context.Context, cmd *Command) bool {
	k := cmd.Key
	err := c.up.UpsertRelation(ctx, api.RelationRequest{
		EntityType:   k.EntityType,
		EntityID:     k.EntityID,
		RelationType: k.Relation,
		Status:       api.StatusOf(cmd.Applied),
	}, cmd.idemKey)

	c.mu.Lock()
	delete(c.pending, k)
	if err == nil {
		delete(c.errs, k)
		hook := c.onCommitted
		c.mu.Unlock()

		c.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRelationCommit, Comp: "interact", Relation: k.String(), Msg: string(api.StatusOf(cmd.Applied))})
		if hook != nil {
			hook(k, cmd.Applied)
		}
		return true
	}
	c.state[k] = cmd.Rollback
	c.errs[k] = err
	c.mu.Unlock()

	logging.Warn("interact: relation upsert failed, rolled back", "key", k.String(), "err", err)
	c.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindRelationRollback, Comp: "interact", Relation: k.String(), Err: err.Error()})
	return false
}

// nextStampLocked returns a timestamp whose millisecond value is strictly
// greater than any previously issued one.
func (c *Controller) nextStampLocked() time.Time {
	ms := c.now().UnixMilli()
	if ms <= c.lastMillis {
		ms = c.lastMillis + 1
	}
	c.lastMillis = ms
	return time.UnixMilli(ms)
}

// Set seeds the local state of k, e.g. from server data, unless a request
// for it is pending.
func (c *Controller) Set(k Key, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending[k] {
		c.state[k] = active
	}
}

// State returns the current (possibly optimistic) state of k.
func (c *Controller) State(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[k]
}

// Pending reports whether a request for k is in flight.
func (c *Controller) Pending(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[k]
}

// Err returns the error of the last failed request for k, cleared by the
// next success.
func (c *Controller) Err(k Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs[k]
}

func (c *Controller) toggleAndCommit(ctx context.Context, k Key, desired bool) bool {
	cmd, err := c.Toggle(k, desired)
	if err != nil {
		return false
	}
	return cmd.Commit(ctx)
}

// Like sets the like relation on an item.
func (c *Controller) Like(ctx context.Context, itemID int64, desired bool) bool {
	return c.toggleAndCommit(ctx, ItemKey(itemID, api.RelationLike), desired)
}

// Favorite sets the favorite relation on an item.
func (c *Controller) Favorite(ctx context.Context, itemID int64, desired bool) bool {
	return c.toggleAndCommit(ctx, ItemKey(itemID, api.RelationFavorite), desired)
}

// Follow sets the follow relation on a user.
func (c *Controller) Follow(ctx context.Context, userID int64, desired bool) bool {
	return c.toggleAndCommit(ctx, Key{EntityType: EntityUser, EntityID: userID, Relation: api.RelationFollow}, desired)
}
