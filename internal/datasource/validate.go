package datasource

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoValidSource is returned when discovery finds nothing loadable.
var ErrNoValidSource = errors.New("no valid source")

// FreshnessTolerance is how much newer a lower-priority source must be before
// it wins over a higher-priority one. Files written in the same save often
// differ by a few milliseconds.
const FreshnessTolerance = 2 * time.Second

// ValidateSource loads the source and records whether it parsed. The source
// is updated in place; the returned error is the validation failure, if any.
func ValidateSource(s *DataSource) error {
	g, err := LoadFromSource(*s)
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		s.NodeCount = 0
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.NodeCount = g.Len()
	return nil
}

// SelectBestSource picks the freshest valid source. When two sources are
// within FreshnessTolerance of each other the higher priority wins.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var best *DataSource
	for i := range sources {
		s := &sources[i]
		if !s.Valid {
			continue
		}
		if best == nil || better(s, best) {
			best = s
		}
	}
	if best == nil {
		return DataSource{}, fmt.Errorf("select source among %d: %w", len(sources), ErrNoValidSource)
	}
	return *best, nil
}

func better(a, b *DataSource) bool {
	diff := a.ModTime.Sub(b.ModTime)
	if diff > FreshnessTolerance {
		return true
	}
	if diff < -FreshnessTolerance {
		return false
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ModTime.After(b.ModTime)
}
