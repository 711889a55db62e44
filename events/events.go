// Package events carries content change notifications from the write path to
// subscribers such as the PWA invalidation observer.
package events

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dinor/dinor-api/models"
)

// Action is the lifecycle step a content row went through.
type Action string

const (
	Created  Action = "created"
	Updated  Action = "updated"
	Deleted  Action = "deleted"
	Restored Action = "restored"
)

// ContentEvent describes one committed change. Before is only set for Updated.
type ContentEvent struct {
	Subject    models.Subject
	Action     Action
	Before     map[string]any
	After      map[string]any
	OccurredAt time.Time
}

// NewContentEvent snapshots the model after the write. before may be nil.
func NewContentEvent(action Action, c models.Content, before map[string]any) ContentEvent {
	ev := ContentEvent{
		Subject:    models.Subject{Kind: c.Kind(), ID: c.Base().ID},
		Action:     action,
		After:      c.Snapshot(),
		OccurredAt: time.Now(),
	}
	if action == Updated {
		ev.Before = before
	}
	return ev
}

// Changed reports whether field differs between Before and After.
// It is false when there is no Before snapshot.
func (e ContentEvent) Changed(field string) bool {
	if e.Before == nil {
		return false
	}
	b, inBefore := e.Before[field]
	a, inAfter := e.After[field]
	if !inBefore && !inAfter {
		return false
	}
	return inBefore != inAfter || !reflect.DeepEqual(a, b)
}

// ChangedAny reports whether any of fields changed.
func (e ContentEvent) ChangedAny(fields ...string) bool {
	for _, f := range fields {
		if e.Changed(f) {
			return true
		}
	}
	return false
}

// Published reports the is_published flag after the change.
func (e ContentEvent) Published() bool {
	v, _ := e.After["is_published"].(bool)
	return v
}

// HasPublishFlag reports whether the model carries is_published at all.
func (e ContentEvent) HasPublishFlag() bool {
	_, ok := e.After["is_published"]
	return ok
}

// Handler consumes content events.
type Handler func(ctx context.Context, ev ContentEvent) error

// Bus dispatches events to subscribers synchronously, in subscription order.
// A failing handler is logged and does not stop the others.
type Bus struct {
	mu       sync.RWMutex
	handlers []namedHandler
	log      *zap.Logger
}

type namedHandler struct {
	name string
	fn   Handler
}

// NewBus returns an empty bus logging through log.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log}
}

// Subscribe registers fn under name.
func (b *Bus) Subscribe(name string, fn Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, namedHandler{name: name, fn: fn})
	b.mu.Unlock()
}

// Publish delivers ev to every handler. It never fails; handler errors and panics are logged.
func (b *Bus) Publish(ctx context.Context, ev ContentEvent) {
	b.mu.RLock()
	hs := make([]namedHandler, len(b.handlers))
	copy(hs, b.handlers)
	b.mu.RUnlock()

	for _, h := range hs {
		b.dispatch(ctx, h, ev)
	}
}

func (b *Bus) dispatch(ctx context.Context, h namedHandler, ev ContentEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("handler", h.name),
				zap.String("subject", ev.Subject.String()),
				zap.Any("panic", r))
		}
	}()
	if err := h.fn(ctx, ev); err != nil {
		b.log.Warn("event handler failed",
			zap.String("handler", h.name),
			zap.String("subject", ev.Subject.String()),
			zap.String("action", string(ev.Action)),
			zap.Error(err))
	}
}
