package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyBatch is returned for a batch without samples.
	ErrEmptyBatch = errors.New("batch has no samples")

	// ErrBatchMismatch is returned when the paired sample arrays differ
	// in length.
	ErrBatchMismatch = errors.New("anemometer and direction vane sample counts differ")
)

// Batch is one collection period of paired samples.
type Batch struct {
	AnemometerPulses    []uint16 `json:"anemometerPulses"`
	DirectionVaneValues []uint16 `json:"directionVaneValues"`
}

// Validate checks that both sample arrays are present and paired.
func (b Batch) Validate() error {
	if len(b.AnemometerPulses) == 0 && len(b.DirectionVaneValues) == 0 {
		return ErrEmptyBatch
	}
	if len(b.AnemometerPulses) != len(b.DirectionVaneValues) {
		return fmt.Errorf("%w: %d != %d", ErrBatchMismatch, len(b.AnemometerPulses), len(b.DirectionVaneValues))
	}
	return nil
}

type payload struct {
	AnemometerPulses            []uint16 `json:"anemometerPulses"`
	DirectionVaneValues         []uint16 `json:"directionVaneValues"`
	SecondsSincePreviousMessage uint16   `json:"secondsSincePreviousMessage"`
}

// Payload renders the per-message JSON document embedded in an envelope.
func Payload(b Batch, sincePrevious time.Duration) (string, error) {
	p := payload{
		AnemometerPulses:            b.AnemometerPulses,
		DirectionVaneValues:         b.DirectionVaneValues,
		SecondsSincePreviousMessage: clampSeconds(sincePrevious),
	}
	if p.AnemometerPulses == nil {
		p.AnemometerPulses = []uint16{}
	}
	if p.DirectionVaneValues == nil {
		p.DirectionVaneValues = []uint16{}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func clampSeconds(d time.Duration) uint16 {
	s := d / time.Second
	switch {
	case s <= 0:
		return 0
	case s > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(s)
	}
}
