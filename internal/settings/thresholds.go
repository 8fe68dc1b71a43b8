package settings

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"MexcPulse/internal/calculator"
)

// Persisted keys of the flat settings map.
const (
	KeyVolumeThreshold   = "VOLUME_THRESHOLD"
	KeySpreadThreshold   = "SPREAD_THRESHOLD"
	KeyNATRThreshold     = "NATR_THRESHOLD"
	KeyBatchSize         = "BATCH_SIZE"
	KeyBatchInterval     = "BATCH_INTERVAL"
	KeyFullCycleInterval = "FULL_CYCLE_INTERVAL"
	KeyInactivityTimeout = "INACTIVITY_TIMEOUT"
	KeyFetchDelay        = "COIN_DATA_DELAY"
	KeyUpdateInterval    = "MONITORING_UPDATE_INTERVAL"
)

// ErrUnknownKey is returned when a caller names a setting that does not exist.
var ErrUnknownKey = errors.New("unknown setting")

// InvalidInputError rejects a user-supplied value that cannot be applied.
type InvalidInputError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Key, e.Reason)
}

// Thresholds is the runtime tuning of the engine. The engine reads a copy
// at the start of every batch, so edits apply from the next batch on.
type Thresholds struct {
	VolumeThreshold   float64       `json:"volume_threshold" default:"1500" validate:"gte=0"`
	SpreadThreshold   float64       `json:"spread_threshold" default:"0.1" validate:"gte=0"`
	NATRThreshold     float64       `json:"natr_threshold" default:"0.4" validate:"gte=0"`
	BatchSize         int           `json:"batch_size" default:"15" validate:"gte=1,lte=100"`
	BatchInterval     time.Duration `json:"batch_interval" default:"400ms" validate:"gte=0"`
	FullCycleInterval time.Duration `json:"full_cycle_interval" default:"1s" validate:"gt=0"`
	InactivityTimeout time.Duration `json:"inactivity_timeout" default:"30s" validate:"gt=0"`
	FetchDelay        time.Duration `json:"fetch_delay" default:"100ms" validate:"gte=0"`
	UpdateInterval    time.Duration `json:"update_interval" default:"8s" validate:"gt=0"`
}

var validate = validator.New()

// Defaults returns the built-in thresholds.
func Defaults() Thresholds {
	var t Thresholds
	if err := defaults.Set(&t); err != nil {
		// tags are static; a failure here is a programming error
		panic(fmt.Sprintf("settings: invalid default tags: %v", err))
	}
	return t
}

// Validate checks every field against its bounds.
func (t Thresholds) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("validate thresholds: %w", err)
	}
	return nil
}

// Limits returns the classification part of the thresholds.
func (t Thresholds) Limits() calculator.Limits {
	return calculator.Limits{
		Volume: t.VolumeThreshold,
		Spread: t.SpreadThreshold,
		NATR:   t.NATRThreshold,
	}
}

// ToMap flattens the thresholds into the persisted key/value form.
// Durations are stored as seconds.
func (t Thresholds) ToMap() map[string]float64 {
	return map[string]float64{
		KeyVolumeThreshold:   t.VolumeThreshold,
		KeySpreadThreshold:   t.SpreadThreshold,
		KeyNATRThreshold:     t.NATRThreshold,
		KeyBatchSize:         float64(t.BatchSize),
		KeyBatchInterval:     t.BatchInterval.Seconds(),
		KeyFullCycleInterval: t.FullCycleInterval.Seconds(),
		KeyInactivityTimeout: t.InactivityTimeout.Seconds(),
		KeyFetchDelay:        t.FetchDelay.Seconds(),
		KeyUpdateInterval:    t.UpdateInterval.Seconds(),
	}
}

// Keys lists every settable key in display order.
func Keys() []string {
	keys := make([]string, 0, 9)
	for k := range Defaults().ToMap() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

// set assigns one key. It does not validate bounds.
func (t *Thresholds) set(key string, v float64) error {
	switch key {
	case KeyVolumeThreshold:
		t.VolumeThreshold = v
	case KeySpreadThreshold:
		t.SpreadThreshold = v
	case KeyNATRThreshold:
		t.NATRThreshold = v
	case KeyBatchSize:
		t.BatchSize = int(math.Round(v))
	case KeyBatchInterval:
		t.BatchInterval = seconds(v)
	case KeyFullCycleInterval:
		t.FullCycleInterval = seconds(v)
	case KeyInactivityTimeout:
		t.InactivityTimeout = seconds(v)
	case KeyFetchDelay:
		t.FetchDelay = seconds(v)
	case KeyUpdateInterval:
		t.UpdateInterval = seconds(v)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// FromMap merges a persisted map over the defaults. Unknown keys are
// ignored and returned so the caller can log them.
func FromMap(m map[string]float64) (Thresholds, []string, error) {
	t := Defaults()
	var ignored []string
	for k, v := range m {
		if err := t.set(strings.ToUpper(k), v); err != nil {
			ignored = append(ignored, k)
		}
	}
	sort.Strings(ignored)
	if err := t.Validate(); err != nil {
		return Defaults(), ignored, err
	}
	return t, ignored, nil
}

// ParseValue converts chat input into a number. Comma decimals are accepted.
func ParseValue(key, raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &InvalidInputError{Key: key, Value: raw, Reason: "not a number"}
	}
	if v < 0 {
		return 0, &InvalidInputError{Key: key, Value: raw, Reason: "must not be negative"}
	}
	return v, nil
}
