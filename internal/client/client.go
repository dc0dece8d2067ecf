// Package client owns one CAN connection: the single reader goroutine, the
// consumer-facing event channel, per-channel liveness, and the command
// surface built on the message schema.
package client

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ametov/acctl/internal/config"
	"github.com/ametov/acctl/internal/observability"
	"github.com/ametov/acctl/internal/protocol/dispatch"
	"github.com/ametov/acctl/internal/protocol/frame"
	"github.com/ametov/acctl/internal/protocol/liveness"
	"github.com/ametov/acctl/internal/protocol/schema"
	"github.com/ametov/acctl/internal/transport"
)

// Config carries the connection reliability knobs.
type Config struct {
	// ReceiveTimeout bounds each wait on the transport; it also bounds
	// shutdown latency to one wait interval.
	ReceiveTimeout time.Duration
	// TransientRetry is the pause after a failed receive before the reader
	// tries again. The reader never exits on a transient error.
	TransientRetry time.Duration
	// LivenessTimeout is the silence interval after which a telemetry
	// channel goes stale.
	LivenessTimeout time.Duration
	// LivenessInterval is the cadence of staleness checks.
	LivenessInterval time.Duration
	// EventBuffer sizes the consumer event channel. The reader blocks rather
	// than drop once the buffer is full.
	EventBuffer int
}

func DefaultConfig() Config {
	return Config{
		ReceiveTimeout:   250 * time.Millisecond,
		TransientRetry:   200 * time.Millisecond,
		LivenessTimeout:  10 * time.Second,
		LivenessInterval: time.Second,
		EventBuffer:      1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = def.ReceiveTimeout
	}
	if c.TransientRetry <= 0 {
		c.TransientRetry = def.TransientRetry
	}
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = def.LivenessTimeout
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = def.LivenessInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}

// Client is one open connection over a single shared transport handle.
type Client struct {
	id         string
	cfg        Config
	schema     schema.Schema
	dispatcher dispatch.Dispatcher
	tr         transport.Transport
	log        zerolog.Logger

	events chan Event
	stop   chan struct{}
	done   chan struct{}

	state    *ConnectionState
	ctrlLive *liveness.Tracker
	invLive  *liveness.Tracker

	closeOnce sync.Once
}

// New starts a client over an already-open transport and takes ownership of
// it. The reader goroutine runs until Close.
func New(sch schema.Schema, tr transport.Transport, cfg Config) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		id:         uuid.NewString(),
		cfg:        cfg,
		schema:     sch,
		dispatcher: dispatch.New(sch),
		tr:         tr,
		events:     make(chan Event, cfg.EventBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      &ConnectionState{},
		ctrlLive:   liveness.NewTracker(cfg.LivenessTimeout),
		invLive:    liveness.NewTracker(cfg.LivenessTimeout),
	}
	c.log = observability.Logger("client").With().Str("conn", c.id).Logger()

	ctrl, inv := c.dispatcher.Signatures()
	c.log.Info().
		Str("telemetry", signatureString(ctrl)).
		Str("inverter", signatureString(inv)).
		Msg("connection open")

	go c.run()
	return c
}

// Connect compiles the schema from the config file contents and opens the
// transport it names. Schema errors are fatal to the connection attempt.
func Connect(cfg config.Config, ccfg Config) (*Client, error) {
	sch, err := schema.Compile(cfg)
	if err != nil {
		return nil, err
	}
	tr, err := transport.Open(cfg.Bus)
	if err != nil {
		return nil, err
	}
	return New(sch, tr, ccfg), nil
}

// Events is the single-consumer event stream. It is closed after Close once
// the reader has exited.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State exposes the connection state aggregate. Consumers get copies, never
// the mutable fields.
func (c *Client) State() *ConnectionState {
	return c.state
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Close stops the reader before its next receive attempt and closes the
// transport. Shutdown latency is bounded by one receive timeout.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.tr.Close()
		<-c.done
		close(c.events)
		c.log.Info().Msg("connection closed")
	})
	return err
}

// run is the only goroutine that blocks on the transport. Each successful
// receive produces exactly one event; the staleness check piggybacks on the
// bounded wait so a silent bus still gets probed about once per interval.
func (c *Client) run() {
	defer close(c.done)
	lastCheck := time.Now()
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		raw, ok, err := c.tr.Receive(c.cfg.ReceiveTimeout)
		now := time.Now()
		switch {
		case errors.Is(err, transport.ErrClosed):
			return
		case err != nil:
			observability.RecordReceiveError()
			c.log.Warn().Err(err).Msg("receive failed, retrying")
			select {
			case <-c.stop:
				return
			case <-time.After(c.cfg.TransientRetry):
			}
		case ok:
			c.handleFrame(raw, now)
		}

		if now.Sub(lastCheck) >= c.cfg.LivenessInterval {
			lastCheck = now
			c.checkLiveness(now)
		}
	}
}

func (c *Client) handleFrame(raw frame.Raw, now time.Time) {
	start := time.Now()
	ev := c.dispatcher.Dispatch(raw)
	observability.RecordDispatch(time.Since(start))

	switch snap := ev.(type) {
	case dispatch.ControllerTelemetry:
		observability.RecordFrameReceived(string(ChannelController))
		c.state.setController(snap)
		c.ctrlLive.Observe(now)
		c.log.Debug().
			Uint8("setpoint", snap.Setpoint).
			Uint8("temp", snap.Temp).
			Str("main", snap.MainLabel()).
			Str("sub", snap.SubLabel()).
			Msg("controller telemetry")
		c.publish(TelemetryEvent{At: now, Snapshot: snap})
	case dispatch.InverterTelemetry:
		observability.RecordFrameReceived(string(ChannelInverter))
		c.state.setInverter(snap)
		c.invLive.Observe(now)
		c.log.Debug().
			Uint8("current", snap.Current).
			Uint8("voltage", snap.Voltage).
			Uint8("temp", snap.Temp).
			Msg("inverter telemetry")
		c.publish(InverterEvent{At: now, Snapshot: snap})
	case dispatch.Unmatched:
		observability.RecordFrameUnmatched()
		ctrl, inv := c.dispatcher.Signatures()
		c.log.Debug().
			Str("frame", raw.String()).
			Str("telemetry", signatureString(ctrl)).
			Str("inverter", signatureString(inv)).
			Msg("frame not matched")
		c.publish(UnmatchedEvent{At: now, Frame: snap})
	}
}

func (c *Client) checkLiveness(now time.Time) {
	if c.ctrlLive.Check(now) {
		observability.RecordStaleReset(string(ChannelController))
		c.state.clearController()
		c.log.Warn().Msg("controller telemetry timeout, resetting state")
		c.publish(StaleEvent{At: now, Channel: ChannelController})
	}
	if c.invLive.Check(now) {
		observability.RecordStaleReset(string(ChannelInverter))
		c.state.clearInverter()
		c.log.Warn().Msg("inverter telemetry timeout, resetting state")
		c.publish(StaleEvent{At: now, Channel: ChannelInverter})
	}
}

// publish never drops an event; past the buffer it blocks until the consumer
// catches up or the connection closes.
func (c *Client) publish(ev Event) {
	select {
	case c.events <- ev:
	case <-c.stop:
	}
}
