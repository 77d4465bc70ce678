package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ambientwx/ambientwx/internal/api/response"
	"github.com/ambientwx/ambientwx/internal/provider/resilience"
	"github.com/ambientwx/ambientwx/internal/weather"
)

// writeError maps a service or fetch error onto a problem response.
// Fetch error messages are safe to return since their URLs are redacted.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var fetchErr *resilience.FetchError

	switch {
	case errors.Is(err, weather.ErrInvalidMACAddress), errors.Is(err, weather.ErrInvalidHistoryTime):
		response.BadRequest(w, r, err.Error(), nil)
		return
	case errors.Is(err, weather.ErrNoObservations):
		response.NotFound(w, r, err.Error())
		return
	case errors.Is(err, weather.ErrArchiveDisabled):
		response.Conflict(w, r, "observation archive is not enabled on this server")
		return
	case errors.Is(err, weather.ErrMalformedRecord):
		response.Unprocessable(w, r, err.Error())
	case errors.As(err, &fetchErr):
		writeFetchError(w, r, fetchErr)
	case errors.Is(err, context.DeadlineExceeded):
		response.GatewayTimeout(w, r, "request deadline exceeded")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}

	log.Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg("request failed")
}

func writeFetchError(w http.ResponseWriter, r *http.Request, err *resilience.FetchError) {
	switch err.Kind {
	case resilience.KindHTTPStatus:
		if err.StatusCode == http.StatusNotFound {
			response.NotFound(w, r, err.Error())
			return
		}
		response.BadGateway(w, r, err.Error())
	case resilience.KindUnauthorized:
		response.BadGateway(w, r, err.Error())
	case resilience.KindTimeout:
		response.GatewayTimeout(w, r, err.Error())
	case resilience.KindRetriesExhausted, resilience.KindConnection:
		response.ServiceUnavailable(w, r, err.Error())
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
