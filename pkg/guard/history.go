package guard

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Direction tags which side of the exchange a record came from.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// ViolationRecord is one remembered validation that found something.
type ViolationRecord struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Direction  Direction `json:"direction"`
	Excerpt    string    `json:"excerpt"`
	Categories []string  `json:"categories"`
	Confidence float64   `json:"confidence"`
	Blocked    bool      `json:"blocked"`
}

const excerptLimit = 200

// history is a size-bounded ring of violation records, oldest evicted,
// safe for concurrent append.
type history struct {
	mu      sync.Mutex
	records []ViolationRecord
	max     int
}

func newHistory(max int) *history {
	return &history{max: max}
}

func (h *history) add(direction Direction, text string, categories []string, confidence float64, blocked bool) {
	rec := ViolationRecord{
		ID:         uuid.NewString(),
		Time:       time.Now().UTC(),
		Direction:  direction,
		Excerpt:    excerpt(text),
		Categories: categories,
		Confidence: confidence,
		Blocked:    blocked,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if len(h.records) > h.max {
		h.records = h.records[len(h.records)-h.max:]
	}
}

// snapshot returns the records newest-first.
func (h *history) snapshot() []ViolationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ViolationRecord, len(h.records))
	for i, rec := range h.records {
		out[len(h.records)-1-i] = rec
	}
	return out
}

func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	runes := []rune(s)
	if len(runes) > excerptLimit {
		runes = runes[:excerptLimit]
	}
	return string(runes)
}
