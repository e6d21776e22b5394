package http2

import "time"

// ServerConfig is the configuration surface of one server-side connection
// engine. Values left zero are replaced by defaults() where it names a
// default, with the same figures the connection preface and admission gate
// assume throughout this package's doc comments; fields without a default
// treat zero as off.
type ServerConfig struct {
	// IdleTimeout closes a connection when no new stream has been opened
	// for this long. Zero is replaced by defaults() with 5 minutes.
	IdleTimeout time.Duration

	// GracefulShutdownTimeout bounds the second stage of a graceful
	// shutdown: how long open streams get to finish after the actual
	// last-stream-id GOAWAY before the connection is forced closed.
	// Zero disables the forced-close stage entirely.
	GracefulShutdownTimeout time.Duration

	// MaxConcurrentRequests caps pull+push half-closed-or-open streams
	// admitted at once (SETTINGS_MAX_CONCURRENT_STREAMS on our side).
	MaxConcurrentRequests uint32

	// MaxConcurrentStreamingRequests caps streamed (non-tunnel) request
	// bodies being fed to the application concurrently.
	MaxConcurrentStreamingRequests uint32

	// MaxStreamsForPriority is the limit for priority-only stream records
	// (opened by a PRIORITY frame for an id that never got HEADERS). Only
	// defaults() reads it; the number of such records is not capped.
	MaxStreamsForPriority uint32

	// ActiveStreamWindowSize is the per-stream input window granted once
	// a request body enters streamed mode, to give the peer enough
	// runway that it doesn't stall waiting on WINDOW_UPDATE.
	ActiveStreamWindowSize int32

	// MaxRequestEntitySize rejects (RST REFUSED_STREAM) any request body
	// that grows past this many bytes, streamed or buffered.
	MaxRequestEntitySize int64

	// PushPreload is accepted so the configuration surface is complete.
	// No component reads it, and the engine emits no PUSH_PROMISE frames
	// whatever its value.
	PushPreload bool

	// CasperCapacityBits sizes the cache-digest bloom filter a future
	// casper implementation would use to avoid redundant pushes. Zero
	// disables casper. No component currently consumes a nonzero value;
	// see DESIGN.md.
	CasperCapacityBits uint

	// ChromiumPriorityHeuristic enables the scheduler's tracking of whether
	// the client's priority tree looks Chromium-like (Scheduler.ChromiumLike,
	// spec §4.3, §9). No stream is re-seated based on that flag. Off by
	// default: it isn't correctness-affecting and the reference impl
	// flags it as a candidate for omission absent benchmark pressure.
	ChromiumPriorityHeuristic bool

	// ConnectionWindowTarget is the administrative size the connection's
	// input window is raised to during the preface (default 16 MiB).
	ConnectionWindowTarget int32

	// MaxRequestTime bounds how long a single stream may sit without
	// reaching REQ_PENDING before it is reset with StreamCanceled. Zero
	// disables the timer.
	MaxRequestTime time.Duration

	// PingInterval, if nonzero, sends a PING on this cadence to keep
	// NAT/load-balancer mappings alive. Each PING carries its send time,
	// but the peer's ACKs are not read back, so no RTT is computed.
	PingInterval time.Duration

	Debug  bool
	Logger Logger
}

// Logger is the logging interface this engine writes diagnostics to,
// satisfied directly by fasthttp.Logger so callers can pass their
// existing fasthttp server's logger straight through.
type Logger interface {
	Printf(format string, args ...interface{})
}

func (c *ServerConfig) defaults() {
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.MaxConcurrentRequests == 0 {
		c.MaxConcurrentRequests = defaultConcurrentStreams
	}
	if c.MaxConcurrentStreamingRequests == 0 {
		c.MaxConcurrentStreamingRequests = c.MaxConcurrentRequests
	}
	if c.MaxStreamsForPriority == 0 {
		c.MaxStreamsForPriority = 100
	}
	if c.ActiveStreamWindowSize == 0 {
		c.ActiveStreamWindowSize = 1 << 20 // 1 MiB
	}
	if c.MaxRequestEntitySize == 0 {
		c.MaxRequestEntitySize = 10 << 20 // 10 MiB
	}
	if c.ConnectionWindowTarget == 0 {
		c.ConnectionWindowTarget = 16 << 20 // 16 MiB, per spec §4.6 example
	}
	if c.Logger == nil {
		c.Logger = logger
	}
}

const gracefulShutdownFirstStage = 1 * time.Second
