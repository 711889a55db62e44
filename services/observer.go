package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dinor/dinor-api/events"
)

// Observer turns content events into cache invalidations and rebuilds.
type Observer struct {
	pwa *PWAService
	log *zap.Logger
}

// NewObserver returns an Observer driving pwa.
func NewObserver(pwa *PWAService, log *zap.Logger) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{pwa: pwa, log: log}
}

// Register subscribes the observer on bus.
func (o *Observer) Register(bus *events.Bus) {
	bus.Subscribe("pwa-observer", o.Handle)
}

// Handle applies the invalidation rules to ev. It always returns nil so the
// write that produced ev is never reported as failed.
func (o *Observer) Handle(ctx context.Context, ev events.ContentEvent) error {
	// The request may finish before the flush does.
	ctx = context.WithoutCancel(ctx)

	if !ShouldInvalidate(ev) {
		o.log.Debug("content change ignored", zap.String("subject", ev.Subject.String()), zap.String("action", string(ev.Action)))
		return nil
	}
	o.pwa.Invalidate(ctx, ev.Subject.Kind, string(ev.Action))
	if ShouldFullRebuild(ev) {
		o.pwa.FullRebuild(ctx, fmt.Sprintf("%s %s", ev.Subject, ev.Action))
	}
	return nil
}
