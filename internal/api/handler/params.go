package handler

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ambientwx/ambientwx/internal/api/models"
)

// MaxObservationLimit is the largest limit the vendor API serves in one call.
const MaxObservationLimit = 288

// MaxHistoryLimit bounds a single archive read.
const MaxHistoryLimit = 10000

const dateOnly = "2006-01-02"

// queryParser collects field errors while reading query parameters.
type queryParser struct {
	r      *http.Request
	errors []models.FieldError
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{r: r}
}

func (p *queryParser) fail(field, message, code string) {
	p.errors = append(p.errors, models.FieldError{Field: field, Message: message, Code: code})
}

// Limit parses a positive integer no larger than max. A missing value yields 0.
func (p *queryParser) Limit(field string, max int) int {
	raw := p.r.URL.Query().Get(field)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(field, "must be an integer", "INVALID_FORMAT")
		return 0
	}
	if n < 1 || n > max {
		p.fail(field, fmt.Sprintf("must be between 1 and %d", max), "OUT_OF_RANGE")
		return 0
	}
	return n
}

// Time parses an RFC 3339 timestamp or a YYYY-MM-DD date (midnight UTC).
func (p *queryParser) Time(field string) *time.Time {
	raw := p.r.URL.Query().Get(field)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, dateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	p.fail(field, "must be an RFC 3339 timestamp or a YYYY-MM-DD date", "INVALID_FORMAT")
	return nil
}

// Errors returns the collected field errors.
func (p *queryParser) Errors() []models.FieldError {
	return p.errors
}

// wantsCSV reports whether the client asked for CSV through format=csv or the Accept header.
func wantsCSV(r *http.Request) bool {
	switch r.URL.Query().Get("format") {
	case "csv":
		return true
	case "json":
		return false
	}
	return acceptsCSV(r.Header.Get("Accept"))
}

func acceptsCSV(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == "text/csv" {
			return true
		}
	}
	return false
}
