package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMAC = "00:11:22:33:44:55"

func fakeAmbient(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("AMBIENT_API_KEY", "cli-key")
	t.Setenv("AMBIENT_APPLICATION_KEY", "cli-app")
	t.Setenv("AMBIENT_BASE_URL", server.URL)
	t.Setenv("AMBIENT_MAC_ADDRESS", "")
	t.Setenv("AMBIENT_MAX_ATTEMPTS", "2")
	t.Setenv("AMBIENT_BACKOFF_FACTOR", "1ms")
}

func ambientOK(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v1/devices":
		fmt.Fprintf(w, `[{"macAddress": %q, "info": {"name": "Backyard", "coords": {"location": "Springfield", "coords": {"lat": 39.78, "lon": -89.65}}}}]`, testMAC)
	case "/v1/devices/" + testMAC:
		fmt.Fprint(w, `[
			{"dateutc": 1714557900000, "date": "2024-05-01T10:05:00.000Z", "tempf": 50, "humidity": 47, "windspeedmph": 0},
			{"dateutc": 1714557600000, "date": "2024-05-01T10:00:00.000Z", "tempf": 49.5, "humidity": 48}
		]`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--env", filepath.Join(t.TempDir(), "none.env")}, args...)
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	code := run(context.Background(), []string{"version"}, &stdout, &bytes.Buffer{})
	assert.Equal(t, exitOK, code)
	assert.Equal(t, Version+"\n", stdout.String())
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Usage: ambientwx")

	fakeAmbient(t, ambientOK)
	code, _, stderr = runCLI(t, "bogus")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown command "bogus"`)
}

func TestRun_MissingKeys(t *testing.T) {
	t.Setenv("AMBIENT_API_KEY", "")
	t.Setenv("AMBIENT_APPLICATION_KEY", "")

	code, _, stderr := runCLI(t, "devices")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "AMBIENT_API_KEY")
}

func TestRun_Devices(t *testing.T) {
	fakeAmbient(t, ambientOK)

	code, stdout, _ := runCLI(t, "devices")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, testMAC)
	assert.Contains(t, stdout, "Backyard")
	assert.Contains(t, stdout, "Springfield")
	assert.Contains(t, stdout, "39.7800,-89.6500")
}

func TestRun_ObservationsDefaultsToFirstDevice(t *testing.T) {
	fakeAmbient(t, ambientOK)

	code, stdout, _ := runCLI(t, "observations")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "station "+testMAC+": 2 observations")
	assert.Contains(t, stdout, "50 °F")
	assert.Contains(t, stdout, "(10.0 °C)")
	assert.Contains(t, stdout, "0 mph")
}

func TestRun_ObservationsFlagsAndCSV(t *testing.T) {
	var query string
	fakeAmbient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/devices/") {
			query = r.URL.RawQuery
		}
		ambientOK(w, r)
	})

	path := filepath.Join(t.TempDir(), "obs.csv")
	code, stdout, _ := runCLI(t, "observations", "--mac", testMAC, "--limit", "2", "--end", "2024-05-02", "--csv", path)
	require.Equal(t, exitOK, code)

	assert.Contains(t, query, "limit=2")
	assert.Contains(t, query, "endDate=2024-05-02T00%3A00%3A00Z")
	assert.Contains(t, stdout, "wrote 2 observations to "+path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,dateutc,humidity,tempf,windspeedmph", lines[0])
}

func TestRun_ObservationsBadEndDate(t *testing.T) {
	fakeAmbient(t, ambientOK)

	code, _, stderr := runCLI(t, "observations", "--end", "May 2nd")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "YYYY-MM-DD")
}

func TestRun_UpstreamFailureExitsNonZero(t *testing.T) {
	fakeAmbient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	code, _, stderr := runCLI(t, "devices")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "401")
	assert.NotContains(t, stderr, "cli-key")
	assert.NotContains(t, stderr, "cli-app")
}
