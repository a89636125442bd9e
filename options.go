package bcknd

import "time"

// Tunables (spec.md §6.4), with defaults chosen the way the teacher's
// options.go documents its own poll/timeout defaults — named and commented
// at the point of definition rather than buried in code.
const (
	// DefaultMaxFrame is the hard cap on a single frame's total length.
	DefaultMaxFrame = MaxFrame
	// DefaultMaxPatterns bounds the subscription registry's compile-time table.
	DefaultMaxPatterns = 256

	// DefaultReadBurst, DefaultWriteBurst and DefaultProcBurst are the
	// fairness caps of spec.md §5: the maximum units a read/write/
	// process-messages handler consumes before yielding back to the reactor.
	DefaultReadBurst  = 64
	DefaultWriteBurst = 16
	DefaultProcBurst  = 32

	// DefaultConnInitDelay is how long after accept CONN_INIT first fires.
	DefaultConnInitDelay = 20 * time.Millisecond
	// DefaultWriteResumeDelay is the yield window after a WRITE_BURST pause.
	DefaultWriteResumeDelay = 5 * time.Millisecond
	// DefaultProcDelay is how soon after frames land PROC_MSG fires.
	DefaultProcDelay = 200 * time.Microsecond

	// DefaultSendBufSize and DefaultRecvBufSize size the per-socket kernel
	// send/receive buffers (SO_SNDBUF/SO_RCVBUF).
	DefaultSendBufSize = 128 * 1024
	DefaultRecvBufSize = 128 * 1024
)

// MaxPatterns is the compile-time capacity of the subscription registry
// (spec.md §3: "the table is fixed in size (e.g., ≤ 256 entries)").
const MaxPatterns = DefaultMaxPatterns

// Option configures a Config via the functional-option pattern, the same
// shape as the teacher's aznet.Option.
type Option func(*Config)

// Config holds the daemon-side tunables (spec.md §6.4). Zero value is
// invalid; build one with NewConfig, which applies defaults first.
type Config struct {
	MaxFrame    int
	MaxClients  int
	MaxPatterns int

	ReadBurst  int
	WriteBurst int
	ProcBurst  int

	ConnInitDelay    time.Duration
	WriteResumeDelay time.Duration
	ProcDelay        time.Duration

	SendBufSize int
	RecvBufSize int

	Metrics Metrics
}

// defaultConfig returns a Config carrying the package defaults, the same
// pattern as the teacher's defaultConfig/applyConfig pair in options.go.
func defaultConfig() *Config {
	return &Config{
		MaxFrame:         DefaultMaxFrame,
		MaxClients:       MaxClients,
		MaxPatterns:      DefaultMaxPatterns,
		ReadBurst:        DefaultReadBurst,
		WriteBurst:       DefaultWriteBurst,
		ProcBurst:        DefaultProcBurst,
		ConnInitDelay:    DefaultConnInitDelay,
		WriteResumeDelay: DefaultWriteResumeDelay,
		ProcDelay:        DefaultProcDelay,
		SendBufSize:      DefaultSendBufSize,
		RecvBufSize:      DefaultRecvBufSize,
		Metrics:          NewDefaultMetrics(),
	}
}

// NewConfig builds a runtime Config by applying opts on top of defaults.
func NewConfig(opts ...Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithReadBurst overrides READ_BURST.
func WithReadBurst(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ReadBurst = n
		}
	}
}

// WithWriteBurst overrides WRITE_BURST.
func WithWriteBurst(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.WriteBurst = n
		}
	}
}

// WithProcBurst overrides PROC_BURST.
func WithProcBurst(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ProcBurst = n
		}
	}
}

// WithSchedulerDelays overrides the three scheduler backoffs in one call.
func WithSchedulerDelays(connInit, writeResume, procDelay time.Duration) Option {
	return func(c *Config) {
		if connInit > 0 {
			c.ConnInitDelay = connInit
		}
		if writeResume > 0 {
			c.WriteResumeDelay = writeResume
		}
		if procDelay > 0 {
			c.ProcDelay = procDelay
		}
	}
}

// WithSocketBuffers overrides SEND_BUFSZ/RECV_BUFSZ.
func WithSocketBuffers(send, recv int) Option {
	return func(c *Config) {
		if send > 0 {
			c.SendBufSize = send
		}
		if recv > 0 {
			c.RecvBufSize = recv
		}
	}
}

// WithMetrics sets a custom Metrics implementation. If not provided, a
// default atomic-counter implementation is used (mirrors the teacher's
// WithMetrics).
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		if m != nil {
			c.Metrics = m
		}
	}
}
