package telemetry

import "time"

// Config defines the dispatcher configuration.
type Config struct {
	// QueueSize is how many events may wait for delivery. Events beyond it are dropped.
	QueueSize int `yaml:"queue_size"`
	// Workers is the number of concurrent delivery goroutines.
	Workers int `yaml:"workers"`
	// SinkTimeout bounds a single delivery to a single sink.
	SinkTimeout time.Duration `yaml:"sink_timeout"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() *Config {
	return &Config{
		QueueSize:   256,
		Workers:     2,
		SinkTimeout: 5 * time.Second,
	}
}

func (c *Config) normalized() *Config {
	out := *DefaultConfig()
	if c == nil {
		return &out
	}
	if c.QueueSize > 0 {
		out.QueueSize = c.QueueSize
	}
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if c.SinkTimeout > 0 {
		out.SinkTimeout = c.SinkTimeout
	}
	return &out
}
