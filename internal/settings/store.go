package settings

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Store owns the live thresholds. Readers take value copies, writers swap
// a fully validated replacement, so no reader ever sees a half-applied edit.
type Store struct {
	mu      sync.RWMutex
	current Thresholds
}

// NewStore creates a store seeded with t.
func NewStore(t Thresholds) (*Store, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Store{current: t}, nil
}

// Snapshot returns a consistent copy of the current thresholds.
func (s *Store) Snapshot() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Apply sets every key in partial or none of them. Values are the raw
// strings a user typed.
func (s *Store) Apply(partial map[string]string) (Thresholds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	for rawKey, raw := range partial {
		key := strings.ToUpper(strings.TrimSpace(rawKey))
		v, err := ParseValue(key, raw)
		if err != nil {
			return s.current, err
		}
		if err := next.set(key, v); err != nil {
			return s.current, err
		}
	}
	if err := validate.Struct(next); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			return s.current, &InvalidInputError{
				Key:    field.Field(),
				Value:  strings.Join(valuesOf(partial), ","),
				Reason: "out of range (" + field.Tag() + " " + field.Param() + ")",
			}
		}
		return s.current, err
	}
	s.current = next
	return next, nil
}

func valuesOf(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
