package schedule

import (
	"context"
	_ "embed"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teranos/tempo/errors"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultCreator tags rows inserted by SeedDefaults.
const DefaultCreator = "system"

// DefaultEvents parses the embedded bootstrap event set.
func DefaultEvents() ([]*ScheduledEvent, error) {
	return ParseEventsYAML(defaultsYAML)
}

// ParseEventsYAML decodes and validates a YAML list of events.
// Events default to enabled unless the document says otherwise.
func ParseEventsYAML(data []byte) ([]*ScheduledEvent, error) {
	var raw []struct {
		ScheduledEvent `yaml:",inline"`
		Enabled        *bool `yaml:"enabled"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse events yaml")
	}

	events := make([]*ScheduledEvent, 0, len(raw))
	for _, r := range raw {
		ev := r.ScheduledEvent
		ev.Enabled = r.Enabled == nil || *r.Enabled
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, nil
}

// SeedDefaults inserts each default event whose id is not stored yet and
// returns the ids it inserted. Existing rows keep user edits and last_run.
func (s *Store) SeedDefaults(ctx context.Context, now time.Time) ([]string, error) {
	defaults, err := DefaultEvents()
	if err != nil {
		return nil, err
	}

	var seeded []string
	for _, ev := range defaults {
		_, err := s.GetEvent(ctx, ev.ID)
		switch {
		case err == nil, errors.IsValidationError(err):
			// present, possibly awaiting sanitize
			continue
		case !errors.IsNotFoundError(err):
			return seeded, err
		}
		ev.CreatedBy = DefaultCreator
		ev.CreatedAt = now
		if err := s.UpsertEvent(ctx, ev); err != nil {
			return seeded, err
		}
		seeded = append(seeded, ev.ID)
	}
	return seeded, nil
}
