package guard

// Config tunes the validator. Zero values are replaced with the defaults
// below at construction.
type Config struct {
	// MaxInputLength short-circuits oversized input to a blocked
	// "structural" result before any detector runs.
	MaxInputLength int

	// BlockThreshold is the aggregate confidence needed to block outside
	// the critical-category override.
	BlockThreshold float64

	// MinDetectors is the number of distinct fired detectors required to
	// block on aggregate confidence alone.
	MinDetectors int

	// BenignContext enables the technical/academic context heuristic.
	BenignContext bool

	// BenignReduction multiplies confidence downward when the benign
	// heuristic fires and no obfuscation was found.
	BenignReduction float64

	// HistorySize bounds the violation history; oldest entries are evicted.
	HistorySize int
}

// DefaultConfig is the balanced profile.
func DefaultConfig() Config {
	return Config{
		MaxInputLength:  100_000,
		BlockThreshold:  0.6,
		MinDetectors:    1,
		BenignContext:   true,
		BenignReduction: 0.5,
		HistorySize:     100,
	}
}

// HighSecurityConfig blocks earlier and ignores benign context.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.BlockThreshold = 0.45
	cfg.BenignContext = false
	return cfg
}

// HighUsabilityConfig tolerates more before blocking.
func HighUsabilityConfig() Config {
	cfg := DefaultConfig()
	cfg.BlockThreshold = 0.8
	cfg.MinDetectors = 2
	return cfg
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxInputLength <= 0 {
		c.MaxInputLength = d.MaxInputLength
	}
	if c.BlockThreshold <= 0 {
		c.BlockThreshold = d.BlockThreshold
	}
	if c.MinDetectors <= 0 {
		c.MinDetectors = d.MinDetectors
	}
	if c.BenignReduction <= 0 {
		c.BenignReduction = d.BenignReduction
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}
