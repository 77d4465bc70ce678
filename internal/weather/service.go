package weather

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
)

// Provider is a source of live station data.
type Provider interface {
	// ListDevices returns the devices registered to the account.
	ListDevices(ctx context.Context) ([]*Device, error)

	// ListObservations returns recent observations for a device, newest first.
	ListObservations(ctx context.Context, mac string, opts ObservationOptions) ([]*Observation, error)

	// Name returns the provider name.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the live data source (required).
	Provider Provider

	// Repository archives observations (optional).
	Repository Repository

	Logger zerolog.Logger
}

// Service composes a live provider with an optional observation archive.
type Service struct {
	provider   Provider
	repository Repository
	logger     zerolog.Logger
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		provider:   cfg.Provider,
		repository: cfg.Repository,
		logger:     cfg.Logger,
	}
}

// ProviderName returns the name of the live provider.
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// ArchiveEnabled reports whether observations can be stored and read back.
func (s *Service) ArchiveEnabled() bool {
	return s.repository != nil
}

// Devices returns the devices registered to the account.
func (s *Service) Devices(ctx context.Context) ([]*Device, error) {
	if s.provider == nil {
		return nil, ErrProviderNotSet
	}

	devices, err := s.provider.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return devices, nil
}

// Observations fetches live observations for a device.
func (s *Service) Observations(ctx context.Context, mac string, opts ObservationOptions) ([]*Observation, error) {
	if s.provider == nil {
		return nil, ErrProviderNotSet
	}
	if err := ValidateMACAddress(mac); err != nil {
		return nil, err
	}

	observations, err := s.provider.ListObservations(ctx, mac, opts)
	if err != nil {
		return nil, fmt.Errorf("listing observations for %s: %w", mac, err)
	}
	return observations, nil
}

// CollectResult summarizes one collect call.
type CollectResult struct {
	Fetched int
	Stored  int
}

// Collect fetches live observations for a device and archives them.
func (s *Service) Collect(ctx context.Context, mac string, opts ObservationOptions) (*CollectResult, error) {
	if s.repository == nil {
		return nil, ErrArchiveDisabled
	}

	observations, err := s.Observations(ctx, mac, opts)
	if err != nil {
		return nil, err
	}

	stored, err := s.repository.Save(ctx, mac, observations)
	if err != nil {
		return nil, fmt.Errorf("archiving observations for %s: %w", mac, err)
	}

	s.logger.Debug().
		Str("mac", mac).
		Int("fetched", len(observations)).
		Int("stored", stored).
		Msg("collected observations")

	return &CollectResult{Fetched: len(observations), Stored: stored}, nil
}

// History returns archived observations for a device, newest first.
func (s *Service) History(ctx context.Context, mac string, q HistoryQuery) ([]*Observation, error) {
	if s.repository == nil {
		return nil, ErrArchiveDisabled
	}
	if err := ValidateMACAddress(mac); err != nil {
		return nil, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return nil, ErrInvalidHistoryTime
	}

	observations, err := s.repository.List(ctx, mac, q)
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", mac, err)
	}
	return observations, nil
}

// Latest returns the most recent live observation for a device. When the
// station reports nothing and an archive is configured, the newest archived
// observation is returned instead.
func (s *Service) Latest(ctx context.Context, mac string) (*Observation, error) {
	observations, err := s.Observations(ctx, mac, ObservationOptions{Limit: 1})
	if err != nil {
		return nil, err
	}

	var latest *Observation
	for _, o := range observations {
		if latest == nil || o.Date.After(latest.Date) {
			latest = o
		}
	}
	if latest != nil {
		return latest, nil
	}

	if s.repository == nil {
		return nil, ErrNoObservations
	}
	return s.repository.Latest(ctx, mac)
}

// ValidateMACAddress checks that mac is a colon separated hardware address.
func ValidateMACAddress(mac string) error {
	if _, err := net.ParseMAC(mac); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMACAddress, mac)
	}
	return nil
}
