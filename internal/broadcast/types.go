package broadcast

import "time"

// Config controls the bulk-send pipeline.
//
// RatePerSec throttles outbound sends globally so a burst of hundreds of
// numbers does not look like spam to the chat backend.
type Config struct {
	Workers    int
	QueueSize  int
	RatePerSec int
	RetryMax   int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	return c
}

// job is one queued bulk send.
type job struct {
	id      string
	name    string
	numbers []string
	text    string
}

// JobStatus is the externally visible progress of a bulk send.
type JobStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Failed    int       `json:"failed"`
	Running   bool      `json:"running"`
	Finished  bool      `json:"finished"`
	StartedAt time.Time `json:"startedAt,omitzero"`
}
