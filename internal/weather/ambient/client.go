// Package ambient implements weather.Provider against the Ambient Weather REST API.
package ambient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ambientwx/ambientwx/internal/provider/resilience"
	"github.com/ambientwx/ambientwx/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "ambientweather"

	// DefaultBaseURL is the Ambient Weather realtime API host.
	DefaultBaseURL = "https://rt.ambientweather.net"

	// DefaultVersion is the API version path segment.
	DefaultVersion = 1
)

// ClientConfig holds configuration for the Ambient Weather client.
type ClientConfig struct {
	// APIKey is the account API key (required).
	APIKey string

	// ApplicationKey is the developer application key (required).
	ApplicationKey string

	// BaseURL is the API host (optional, defaults to DefaultBaseURL).
	BaseURL string

	// Version is the API version (optional, defaults to DefaultVersion).
	Version int

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Ambient Weather API client.
type Client struct {
	apiKey         string
	applicationKey string
	apiURL         string
	httpClient     *resilience.Client
	logger         zerolog.Logger
}

// NewClient creates a new Ambient Weather client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	version := cfg.Version
	if version <= 0 {
		version = DefaultVersion
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Logger = cfg.Logger
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		apiKey:         cfg.APIKey,
		applicationKey: cfg.ApplicationKey,
		apiURL:         fmt.Sprintf("%s/v%d", strings.TrimSuffix(baseURL, "/"), version),
		httpClient:     httpClient,
		logger:         cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// APIURL returns the versioned API root, e.g. https://rt.ambientweather.net/v1.
func (c *Client) APIURL() string {
	return c.apiURL
}

// String describes the client without exposing its keys.
func (c *Client) String() string {
	return fmt.Sprintf("ambient.Client(api_url=%s, api_key=***, application_key=***)", c.apiURL)
}

// ListDevices returns every device registered to the account.
func (c *Client) ListDevices(ctx context.Context) ([]*weather.Device, error) {
	var raw []map[string]any
	if err := c.get(ctx, "devices", nil, &raw); err != nil {
		return nil, err
	}

	devices, err := weather.MapDevices(raw)
	if err != nil {
		return nil, fmt.Errorf("mapping devices: %w", err)
	}
	return devices, nil
}

// ListObservations returns recent observations for one device, newest first.
// The limit is passed to the API as is.
func (c *Client) ListObservations(ctx context.Context, mac string, opts weather.ObservationOptions) ([]*weather.Observation, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = weather.DefaultObservationLimit
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if opts.EndDate != nil {
		query.Set("endDate", opts.EndDate.UTC().Format(time.RFC3339))
	}

	var raw []map[string]any
	if err := c.get(ctx, "devices/"+url.PathEscape(mac), query, &raw); err != nil {
		return nil, err
	}

	observations, err := weather.MapObservations(raw)
	if err != nil {
		return nil, fmt.Errorf("mapping observations for %s: %w", mac, err)
	}

	c.logger.Debug().
		Str("mac", mac).
		Int("count", len(observations)).
		Msg("fetched observations")

	return observations, nil
}

// get issues one fetch with the account keys attached and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, v any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.apiKey)
	query.Set("applicationKey", c.applicationKey)

	res, err := c.httpClient.Fetch(ctx, resilience.Request{
		BaseURL:  c.apiURL,
		Endpoint: endpoint,
		Query:    query,
	})
	if err != nil {
		return err
	}

	if err := res.DecodeJSON(v); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", weather.ErrMalformedRecord, endpoint, err)
	}
	return nil
}
