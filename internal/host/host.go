package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fritzlab/fritzbox_exporter/internal/plugin"
)

// Host invokes the registered plugin callbacks serially and acts as the
// plugin's sink. It never calls two callbacks concurrently, which is the
// contract that lets the plugin stay lock-free.
type Host struct {
	logger   *slog.Logger
	bridge   *Bridge
	entries  []plugin.ConfigEntry
	interval time.Duration

	cbConfig   func([]plugin.ConfigEntry)
	cbInit     func() error
	cbRead     func() error
	cbShutdown func() error

	dispatched int
}

// New creates a host that delivers entries to the config callback and polls
// at the given interval.
func New(bridge *Bridge, entries []plugin.ConfigEntry, interval time.Duration, logger *slog.Logger) *Host {
	return &Host{
		logger:   logger,
		bridge:   bridge,
		entries:  entries,
		interval: interval,
	}
}

// RegisterConfig registers the callback receiving raw configuration entries.
func (h *Host) RegisterConfig(fn func([]plugin.ConfigEntry)) { h.cbConfig = fn }

// RegisterInit registers the callback run once before the first read.
func (h *Host) RegisterInit(fn func() error) { h.cbInit = fn }

// RegisterRead registers the callback run on every poll tick.
func (h *Host) RegisterRead(fn func() error) { h.cbRead = fn }

// RegisterShutdown registers the callback run once at teardown.
func (h *Host) RegisterShutdown(fn func() error) { h.cbShutdown = fn }

// Dispatch implements plugin.Sink. Fire-and-forget from the plugin's side.
func (h *Host) Dispatch(rec plugin.Record) {
	h.dispatched++
	h.bridge.Observe(rec)

	if len(rec.Values) > 0 {
		h.logger.Debug("dispatched record",
			"host", rec.Host,
			"type", rec.Type,
			"type_instance", rec.TypeInstance,
			"value", rec.Values[0].String())
	}
}

// Warning implements plugin.Sink.
func (h *Host) Warning(msg string) {
	h.logger.Warn(msg)
}

// Run executes the plugin lifecycle: config, init, an immediate first read,
// then one read per tick until ctx is cancelled, then shutdown. Only an init
// failure is fatal; a failing read logs and waits for the next tick.
func (h *Host) Run(ctx context.Context) error {
	if h.cbConfig != nil {
		h.cbConfig(h.entries)
	}

	if h.cbInit != nil {
		if err := h.cbInit(); err != nil {
			// The shutdown callback still runs, as it would at teardown.
			h.shutdown()
			return fmt.Errorf("plugin init: %w", err)
		}
	}

	h.readOnce()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.readOnce()
		case <-ctx.Done():
			h.shutdown()
			return nil
		}
	}
}

func (h *Host) shutdown() {
	if h.cbShutdown == nil {
		return
	}
	if err := h.cbShutdown(); err != nil {
		h.logger.Error("plugin shutdown failed", "error", err)
	}
}

func (h *Host) readOnce() {
	if h.cbRead == nil {
		return
	}

	h.dispatched = 0
	if err := h.cbRead(); err != nil {
		h.logger.Error("read callback failed", "error", err)
	}

	h.bridge.SetUp(h.dispatched > 0)
}
