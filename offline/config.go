package offline

import "time"

// SyncConfig controls remote sync client and queue behavior.
type SyncConfig struct {
	BaseURL  string
	DeviceID string
	Timeout  time.Duration

	// MaxQueueSize caps the offline backlog length. When a new operation
	// would exceed it, the oldest queued entry is evicted first.
	MaxQueueSize int

	// MaxRetries caps replay attempts per queued operation. An operation
	// whose retry count reaches this budget is dropped on the next drain.
	MaxRetries int

	// HeartbeatInterval is how often the connectivity monitor probes the
	// remote store while connected.
	HeartbeatInterval time.Duration
}

const (
	defaultMaxQueueSize      = 50
	defaultMaxRetries        = 3
	defaultTimeout           = 15 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
)

func (c SyncConfig) queueSize() int {
	if c.MaxQueueSize <= 0 {
		return defaultMaxQueueSize
	}
	return c.MaxQueueSize
}

func (c SyncConfig) retryBudget() int {
	if c.MaxRetries <= 0 {
		return defaultMaxRetries
	}
	return c.MaxRetries
}

func (c SyncConfig) timeout() time.Duration {
	if c.Timeout == 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c SyncConfig) heartbeat() time.Duration {
	if c.HeartbeatInterval == 0 {
		return defaultHeartbeatInterval
	}
	return c.HeartbeatInterval
}
