package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/ambientwx/ambientwx/internal/app"
	"github.com/ambientwx/ambientwx/internal/config"
	"github.com/ambientwx/ambientwx/internal/export"
	"github.com/ambientwx/ambientwx/internal/weather"
)

const usage = `Usage: ambientwx [--env FILE] [--log-level LEVEL] <command> [flags]

Commands:
  devices        list the stations on the account
  observations   show recent observations for a station
  version        print the version
`

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

type cli struct {
	stdout io.Writer
	stderr io.Writer
	logger zerolog.Logger
	cfg    *config.Config
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("ambientwx", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	envFile := global.String("env", ".env", "path to an optional .env file")
	logLevel := global.String("log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	global.Usage = func() { fmt.Fprint(stderr, usage) }

	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	command, rest := global.Arg(0), global.Args()[1:]
	if command == "version" {
		fmt.Fprintln(stdout, Version)
		return exitOK
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(stderr, "ambientwx: %v\n", err)
		return exitError
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		logger: consoleLogger(stderr, level),
		cfg:    cfg,
	}

	switch command {
	case "devices":
		err = c.devices(ctx, rest)
	case "observations", "obs":
		err = c.observations(ctx, rest)
	default:
		fmt.Fprintf(stderr, "ambientwx: unknown command %q\n\n%s", command, usage)
		return exitUsage
	}

	switch {
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return exitUsage
	case err != nil:
		c.logger.Error().Err(err).Str("command", command).Msg("command failed")
		fmt.Fprintf(stderr, "ambientwx: %v\n", err)
		return exitError
	}
	return exitOK
}

func consoleLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func (c *cli) service(ctx context.Context) (*app.Stack, error) {
	cfg := *c.cfg
	cfg.ArchiveEnabled = false
	return app.Build(ctx, &cfg, app.Options{Logger: c.logger})
}

func (c *cli) devices(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("devices", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	stack, err := c.service(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	devices, err := stack.Service.Devices(ctx)
	if err != nil {
		return err
	}

	printDevices(c.stdout, devices)
	return nil
}

func (c *cli) observations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("observations", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	mac := fs.String("mac", c.cfg.Ambient.MACAddress, "station MAC address; defaults to AMBIENT_MAC_ADDRESS or the first device")
	limit := fs.Int("limit", weather.DefaultObservationLimit, "number of observations to request")
	end := fs.String("end", "", "latest date to include, YYYY-MM-DD")
	csvPath := fs.String("csv", "", "write all observations to this CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := weather.ObservationOptions{Limit: *limit}
	if *end != "" {
		t, err := time.Parse("2006-01-02", *end)
		if err != nil {
			fmt.Fprintf(c.stderr, "ambientwx: --end must be YYYY-MM-DD: %v\n", err)
			return errUsage
		}
		opts.EndDate = &t
	}

	stack, err := c.service(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	station := *mac
	if station == "" {
		devices, err := stack.Service.Devices(ctx)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return errors.New("no devices on this account")
		}
		station = devices[0].MACAddress
	}

	observations, err := stack.Service.Observations(ctx, station, opts)
	if err != nil {
		return err
	}

	printObservationSummary(c.stdout, station, observations)

	if *csvPath != "" {
		if err := export.WriteCSVFile(*csvPath, observations); err != nil {
			return fmt.Errorf("writing %s: %w", *csvPath, err)
		}
		fmt.Fprintf(c.stdout, "wrote %d observations to %s\n", len(observations), *csvPath)
	}
	return nil
}

func printDevices(w io.Writer, devices []*weather.Device) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MAC\tNAME\tLOCATION\tCOORDINATES\tLAST OBSERVATION")
	for _, d := range devices {
		location := "-"
		if d.Location != nil {
			location = *d.Location
		}
		coords := "-"
		if d.HasCoordinates() {
			coords = fmt.Sprintf("%.4f,%.4f", *d.Latitude, *d.Longitude)
		}
		last := "-"
		if d.LastObservation != nil {
			last = d.LastObservation.Date.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.MACAddress, d.Name, location, coords, last)
	}
	_ = tw.Flush()
}

// summaryFields are printed for the most recent observation.
var summaryFields = []string{
	weather.FieldTemperature,
	weather.FieldFeelsLike,
	weather.FieldHumidity,
	weather.FieldWindDir,
	weather.FieldWindSpeed,
	weather.FieldBaromRelative,
	weather.FieldDailyRain,
}

func printObservationSummary(w io.Writer, mac string, observations []*weather.Observation) {
	fmt.Fprintf(w, "station %s: %d observations\n", mac, len(observations))
	if len(observations) == 0 {
		return
	}

	latest := observations[0]
	fmt.Fprintf(w, "latest: %s\n", latest.Date.Format(time.RFC3339))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, field := range summaryFields {
		q, ok := latest.Quantity(field)
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %s\t%s", field, q)
		if converted, ok := metric(q); ok {
			line += fmt.Sprintf("\t(%.1f %s)", converted.Magnitude, converted.Unit.Symbol())
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}

// metric converts imperial quantities to the metric unit shown alongside them.
func metric(q weather.Quantity) (weather.Quantity, bool) {
	targets := map[weather.Unit]weather.Unit{
		weather.UnitDegreeFahrenheit: weather.UnitDegreeCelsius,
		weather.UnitMilePerHour:      weather.UnitKilometerPerHour,
		weather.UnitInchOfMercury:    weather.UnitHectopascal,
		weather.UnitInch:             weather.UnitMillimeter,
	}
	target, ok := targets[q.Unit]
	if !ok {
		return weather.Quantity{}, false
	}
	converted, err := q.To(target)
	if err != nil {
		return weather.Quantity{}, false
	}
	return converted, true
}
