package utils

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStopsComponentsInOrderAfterDrain(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), time.Second, time.Second)

	var order []string
	srv.OnShutdown(
		ShutdownHook{Name: "worker", Stop: func(ctx context.Context) error {
			order = append(order, "worker")
			return errors.New("still busy")
		}},
		ShutdownHook{Name: "scheduler", Stop: func(ctx context.Context) error {
			order = append(order, "scheduler")
			return nil
		}},
	)

	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe() }()
	srv.signals <- syscall.SIGTERM

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	// A failing hook does not keep later components running.
	assert.Equal(t, []string{"worker", "scheduler"}, order)
}

func TestServerListenError(t *testing.T) {
	srv := NewServer("256.0.0.1:bad", http.NotFoundHandler(), time.Second, time.Second)
	assert.Error(t, srv.ListenAndServe())
}
