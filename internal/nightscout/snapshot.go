package nightscout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrcode/loopchart/internal/models"
)

// FetchSnapshot reads everything the chart needs for the lookback ending at
// now. An empty glucose history is not an error. MaxBasal is left zero for
// the caller to fill from settings.
func (c *Client) FetchSnapshot(ctx context.Context, now time.Time, lookback time.Duration) (*models.Snapshot, error) {
	from := now.Add(-lookback)

	entries, err := c.GetEntries(ctx, from, 0)
	if err != nil && !errors.Is(err, ErrNoEntries) {
		return nil, fmt.Errorf("fetching entries: %w", err)
	}

	treatments, err := c.GetTreatments(ctx, from, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching treatments: %w", err)
	}

	statuses, err := c.GetDeviceStatus(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("fetching device status: %w", err)
	}

	profiles, err := c.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	glucose, manual := ConvertEntries(entries)
	t := ConvertTreatments(treatments)

	return &models.Snapshot{
		Now:           now,
		Glucose:       glucose,
		ManualGlucose: manual,
		Suggestion:    ConvertSuggestion(statuses),
		TempBasals:    t.TempBasals,
		Boluses:       t.Boluses,
		Suspensions:   t.Suspensions,
		Announcements: t.Announcements,
		Carbs:         t.Carbs,
		TempTargets:   t.TempTargets,
		Overrides:     t.Overrides,
		BasalProfile:  ConvertProfile(profiles, now),
	}, nil
}
