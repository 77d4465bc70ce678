package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ambientwx/ambientwx/internal/api/models"
	"github.com/ambientwx/ambientwx/internal/api/response"
	"github.com/ambientwx/ambientwx/internal/export"
	"github.com/ambientwx/ambientwx/internal/weather"
)

// StationService is the part of weather.Service the API reads from.
type StationService interface {
	Devices(ctx context.Context) ([]*weather.Device, error)
	Observations(ctx context.Context, mac string, opts weather.ObservationOptions) ([]*weather.Observation, error)
	History(ctx context.Context, mac string, q weather.HistoryQuery) ([]*weather.Observation, error)
	Latest(ctx context.Context, mac string) (*weather.Observation, error)
}

// WeatherHandler serves station and observation endpoints.
type WeatherHandler struct {
	service StationService
	logger  zerolog.Logger
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(service StationService, logger zerolog.Logger) *WeatherHandler {
	return &WeatherHandler{
		service: service,
		logger:  logger.With().Str("component", "weather_handler").Logger(),
	}
}

// ListDevices handles GET /v1/devices.
func (h *WeatherHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.service.Devices(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewDeviceList(devices))
}

// ListObservations handles GET /v1/devices/{mac}/observations.
// It answers with CSV when the client asks for it.
func (h *WeatherHandler) ListObservations(w http.ResponseWriter, r *http.Request) {
	mac, ok := h.macParam(w, r)
	if !ok {
		return
	}

	q := newQueryParser(r)
	opts := weather.ObservationOptions{
		Limit:   q.Limit("limit", MaxObservationLimit),
		EndDate: q.Time("endDate"),
	}
	if errs := q.Errors(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	observations, err := h.service.Observations(r.Context(), mac, opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.writeObservations(w, r, mac, models.SourceLive, observations)
}

// History handles GET /v1/devices/{mac}/history.
func (h *WeatherHandler) History(w http.ResponseWriter, r *http.Request) {
	mac, ok := h.macParam(w, r)
	if !ok {
		return
	}

	q := newQueryParser(r)
	query := weather.HistoryQuery{Limit: q.Limit("limit", MaxHistoryLimit)}
	if from := q.Time("from"); from != nil {
		query.From = *from
	}
	if to := q.Time("to"); to != nil {
		query.To = *to
	}
	if errs := q.Errors(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	observations, err := h.service.History(r.Context(), mac, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.writeObservations(w, r, mac, models.SourceArchive, observations)
}

// Latest handles GET /v1/devices/{mac}/latest.
func (h *WeatherHandler) Latest(w http.ResponseWriter, r *http.Request) {
	mac, ok := h.macParam(w, r)
	if !ok {
		return
	}

	obs, err := h.service.Latest(r.Context(), mac)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewObservation(obs))
}

func (h *WeatherHandler) macParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	mac := chi.URLParam(r, "mac")
	if err := weather.ValidateMACAddress(mac); err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "mac", Message: "must be a colon separated MAC address", Code: "INVALID_FORMAT"},
		})
		return "", false
	}
	return mac, true
}

func (h *WeatherHandler) writeObservations(w http.ResponseWriter, r *http.Request, mac, source string, observations []*weather.Observation) {
	if !wantsCSV(r) {
		response.JSON(w, r, http.StatusOK, models.NewObservationList(mac, source, observations))
		return
	}

	filename := fmt.Sprintf("%s-%s.csv", strings.ReplaceAll(mac, ":", ""), source)
	if err := response.CSV(w, r, filename, export.ToTable(observations)); err != nil {
		h.logger.Error().Err(err).Str("mac", mac).Msg("writing CSV response")
	}
}
