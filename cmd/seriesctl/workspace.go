package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"seriesdash/internal/config"
	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/exporter"
	"seriesdash/internal/infrastructure"
	"seriesdash/internal/middleware"
	"seriesdash/internal/services"
	"seriesdash/internal/sources"
)

// workspace is a series service built from the config file.
type workspace struct {
	service  *services.SeriesService
	registry *sources.Registry
	paths    *config.Paths
	logger   *slog.Logger
}

func openWorkspace() (*workspace, error) {
	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if len(cfg.Datasets) == 0 {
		return nil, errors.New("no datasets configured")
	}

	logger := infrastructure.NewLogger(os.Stderr, *logLevel)
	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, err
	}
	registry, err := sources.NewRegistry(cfg.Datasets, paths, logger)
	if err != nil {
		return nil, err
	}

	return &workspace{
		service: services.NewSeriesService(services.SeriesDeps{
			Sources:  registry,
			Datasets: cfg.Datasets,
			Exports:  exporter.NewCSVWriter(paths),
			Logger:   logger,
		}),
		registry: registry,
		paths:    paths,
		logger:   logger,
	}, nil
}

func (w *workspace) Close() {
	if err := w.registry.Close(); err != nil {
		w.logger.Warn("close sources", slog.String("error", err.Error()))
	}
}

// datasetArg returns the single positional dataset argument.
func datasetArg(f *flag.FlagSet) (string, error) {
	if f.NArg() < 1 {
		return "", errors.New("missing dataset name")
	}
	return f.Arg(0), nil
}

// memberFlag collects repeated -in column=v1,v2 flags.
type memberFlag map[string][]string

func (m memberFlag) String() string {
	parts := make([]string, 0, len(m))
	for col, vals := range m {
		parts = append(parts, col+"="+strings.Join(vals, ","))
	}
	return strings.Join(parts, " ")
}

func (m memberFlag) Set(s string) error {
	col, vals, ok := strings.Cut(s, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return fmt.Errorf("expected column=value[,value...], got %q", s)
	}
	for _, v := range strings.Split(vals, ",") {
		if v = strings.TrimSpace(v); v != "" {
			m[col] = append(m[col], v)
		}
	}
	return nil
}

// boundFlag is an optional float.
type boundFlag struct{ v *float64 }

func (b *boundFlag) String() string {
	if b.v == nil {
		return ""
	}
	return strconv.FormatFloat(*b.v, 'g', -1, 64)
}

func (b *boundFlag) Set(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("bound must be finite, got %q", s)
	}
	b.v = &f
	return nil
}

// selectionFlags are the flags shared by series, export and chart.
type selectionFlags struct {
	key      string
	members  memberFlag
	min, max boundFlag
	symbol   string
	interval string
	start    string
	end      string
}

func (s *selectionFlags) register(f *flag.FlagSet) {
	s.members = memberFlag{}
	f.StringVar(&s.key, "key", "", "entity to chart, matched against the dataset's id column")
	f.Var(s.members, "in", "restrict a selectable column: -in column=v1,v2 (repeatable)")
	f.Var(&s.min, "min", "y-axis minimum override")
	f.Var(&s.max, "max", "y-axis maximum override")
	f.StringVar(&s.symbol, "symbol", "", "ticker symbol for remote datasets")
	f.StringVar(&s.interval, "interval", "", "sampling interval for remote datasets (1d, 1wk, 1mo, ...)")
	f.StringVar(&s.start, "start", "", "first date for remote datasets (YYYY-MM-DD)")
	f.StringVar(&s.end, "end", "", "last date for remote datasets (YYYY-MM-DD)")
}

// request validates the flags with the same rules as the HTTP API.
func (s *selectionFlags) request(logger *slog.Logger) (services.SeriesRequest, error) {
	sel := services.Selection{
		Key:      strings.TrimSpace(s.key),
		Min:      s.min.v,
		Max:      s.max.v,
		Symbol:   strings.TrimSpace(s.symbol),
		Interval: strings.TrimSpace(s.interval),
		Start:    strings.TrimSpace(s.start),
		End:      strings.TrimSpace(s.end),
	}
	if len(s.members) > 0 {
		sel.Members = s.members
	}

	v := middleware.NewValidator(logger)
	v.RegisterStructValidation(services.SelectionStructLevel, services.Selection{})
	if err := v.ValidateStruct(sel); err != nil {
		return services.SeriesRequest{}, err
	}
	return sel.Request(), nil
}

// fail prints err to stderr and returns ExitFailure. Validation errors are
// listed field by field.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "error:", err)
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		switch d := apiErr.Details.(type) {
		case apierrors.ValidationErrors:
			for _, fe := range d.Errors {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", fe.Field, fe.Message)
			}
		case apierrors.ValidationError:
			fmt.Fprintf(os.Stderr, "  %s: %s\n", d.Field, d.Message)
		case string:
			fmt.Fprintf(os.Stderr, "  %s\n", d)
		}
	}
	return subcommands.ExitFailure
}
