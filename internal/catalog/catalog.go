package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"salonbot/internal/storage"
)

// Service is one bookable salon service. Reference data: loaded once at
// startup and read-only afterwards.
type Service struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration"`
	Cost            float64 `json:"cost"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

var ErrUnknownService = errors.New("unknown service")

// Catalog holds the full service list with id lookup.
type Catalog struct {
	services []Service
	byID     map[string]Service
}

// Load reads the catalog from durable storage. A missing document yields
// an empty catalog, not an error: a fresh install has no services yet.
func Load(ctx context.Context, store storage.Store) (*Catalog, error) {
	var services []Service
	err := store.Load(ctx, storage.KeyServices, &services)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load services: %w", err)
	}
	return New(services)
}

// New builds a catalog from a service list, validating reference data once
// so the rest of the system never has to.
func New(services []Service) (*Catalog, error) {
	byID := make(map[string]Service, len(services))
	for _, s := range services {
		if s.ID == "" {
			return nil, errors.New("service with empty id")
		}
		if s.DurationMinutes <= 0 {
			return nil, fmt.Errorf("service %q: duration must be > 0", s.ID)
		}
		if s.Cost < 0 {
			return nil, fmt.Errorf("service %q: cost must be >= 0", s.ID)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate service id %q", s.ID)
		}
		byID[s.ID] = s
	}

	sorted := append([]Service(nil), services...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &Catalog{services: sorted, byID: byID}, nil
}

func (c *Catalog) Len() int { return len(c.services) }

// List returns all services sorted by id.
func (c *Catalog) List() []Service {
	return append([]Service(nil), c.services...)
}

func (c *Catalog) Get(id string) (Service, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Resolve maps ids to services, failing on the first unknown id.
func (c *Catalog) Resolve(ids []string) ([]Service, error) {
	out := make([]Service, 0, len(ids))
	for _, id := range ids {
		s, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownService, id)
		}
		out = append(out, s)
	}
	return out, nil
}

// TotalDuration sums the durations of the given service ids.
func (c *Catalog) TotalDuration(ids []string) (time.Duration, error) {
	services, err := c.Resolve(ids)
	if err != nil {
		return 0, err
	}
	var total time.Duration
	for _, s := range services {
		total += s.Duration()
	}
	return total, nil
}

// TotalCost sums the costs of the given service ids.
func (c *Catalog) TotalCost(ids []string) (float64, error) {
	services, err := c.Resolve(ids)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, s := range services {
		total += s.Cost
	}
	return total, nil
}

// Names maps ids to display names, keeping unknown ids verbatim
// (a service removed from the catalog can still appear in old jobs).
func (c *Catalog) Names(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s, ok := c.byID[id]; ok {
			out = append(out, s.Name)
		} else {
			out = append(out, id)
		}
	}
	return out
}
