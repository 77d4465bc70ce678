package weather

import "context"

// DefaultHistoryLimit caps archive reads when no limit is given.
const DefaultHistoryLimit = 288

// Repository defines the interface for observation persistence.
type Repository interface {
	// Save stores observations for a device. Observations already stored
	// for the same device and dateutc are skipped.
	// Returns the number of newly stored observations.
	Save(ctx context.Context, mac string, observations []*Observation) (int, error)

	// List returns archived observations for a device, newest first.
	List(ctx context.Context, mac string, q HistoryQuery) ([]*Observation, error)

	// Latest returns the most recent archived observation for a device.
	Latest(ctx context.Context, mac string) (*Observation, error)
}
