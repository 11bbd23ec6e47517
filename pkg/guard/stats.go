package guard

import (
	"sync/atomic"
	"time"
)

// Stats is a read-only snapshot of the running counters.
type Stats struct {
	TotalValidations      uint64        `json:"total_validations"`
	InputValidations      uint64        `json:"input_validations"`
	OutputValidations     uint64        `json:"output_validations"`
	AttacksDetected       uint64        `json:"attacks_detected"`
	FailuresDetected      uint64        `json:"failures_detected"`
	Blocked               uint64        `json:"blocked"`
	ObfuscationDetections uint64        `json:"obfuscation_detections"`
	AverageLatency        time.Duration `json:"average_latency_ns"`
}

type counters struct {
	total       atomic.Uint64
	input       atomic.Uint64
	output      atomic.Uint64
	attacks     atomic.Uint64
	failures    atomic.Uint64
	blocked     atomic.Uint64
	obfuscation atomic.Uint64
	latencyNS   atomic.Uint64
}

func (c *counters) record(direction Direction, detected, blocked, obfuscated bool, elapsed time.Duration) {
	c.total.Add(1)
	if direction == DirectionInput {
		c.input.Add(1)
		if detected {
			c.attacks.Add(1)
		}
	} else {
		c.output.Add(1)
		if detected {
			c.failures.Add(1)
		}
	}
	if blocked {
		c.blocked.Add(1)
	}
	if obfuscated {
		c.obfuscation.Add(1)
	}
	c.latencyNS.Add(uint64(elapsed.Nanoseconds()))
}

func (c *counters) snapshot() Stats {
	total := c.total.Load()
	s := Stats{
		TotalValidations:      total,
		InputValidations:      c.input.Load(),
		OutputValidations:     c.output.Load(),
		AttacksDetected:       c.attacks.Load(),
		FailuresDetected:      c.failures.Load(),
		Blocked:               c.blocked.Load(),
		ObfuscationDetections: c.obfuscation.Load(),
	}
	if total > 0 {
		s.AverageLatency = time.Duration(c.latencyNS.Load() / total)
	}
	return s
}

func (c *counters) reset() {
	c.total.Store(0)
	c.input.Store(0)
	c.output.Store(0)
	c.attacks.Store(0)
	c.failures.Store(0)
	c.blocked.Store(0)
	c.obfuscation.Store(0)
	c.latencyNS.Store(0)
}
