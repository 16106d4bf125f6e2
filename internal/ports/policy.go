package ports

import "time"

// Policy controls queue thresholds, retry bounds, and backoff behavior.
type Policy struct {
	MaxQueueLen int           `yaml:"max_queue_len"`
	IdleSleep   time.Duration `yaml:"idle_sleep"`

	OnQueueFull string `yaml:"on_queue_full"` // "block", "drop"

	// ReadRetries bounds transient read retries before a source is
	// declared dead; MaxConsecutiveFailures does the same for blocks
	// rejected by the test battery.
	ReadRetries            int           `yaml:"read_retries"`
	RetryBackoff           time.Duration `yaml:"retry_backoff"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`

	FeedBackoff time.Duration `yaml:"feed_backoff"`
	GracePeriod time.Duration `yaml:"grace_period"`
}
