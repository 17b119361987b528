package sources

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"golang.org/x/time/rate"

	"seriesdash/internal/config"
	apierrors "seriesdash/internal/errors"
)

// Registry holds one Source per configured dataset. It owns the SQLite
// handles it opened and releases them on Close.
type Registry struct {
	sources map[string]Source
	dbs     map[string]*sql.DB
	logger  *slog.Logger
}

// NewRegistry builds the sources for datasets. Relative file paths are
// resolved against paths.DataDir.
func NewRegistry(datasets []config.DatasetConfig, paths *config.Paths, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		sources: make(map[string]Source, len(datasets)),
		dbs:     make(map[string]*sql.DB),
		logger:  logger.With(slog.String("component", "sources")),
	}

	for _, d := range datasets {
		src, err := r.build(d, paths)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("dataset %q: %w", d.Name, err)
		}
		r.sources[d.Name] = src
		r.logger.Info("Registered dataset",
			slog.String("dataset", d.Name),
			slog.String("kind", d.Kind))
	}
	return r, nil
}

func (r *Registry) build(d config.DatasetConfig, paths *config.Paths) (Source, error) {
	shape := Shape{Rename: d.Rename, Order: d.Order}
	path := d.Path
	if paths != nil && path != "" {
		path = paths.GetDataPath(path)
	}

	switch d.Kind {
	case config.KindCSV:
		var delim rune
		if d.Delimiter != "" {
			delim = []rune(d.Delimiter)[0]
		}
		return NewCSVSource(d.Name, path, delim, shape), nil

	case config.KindXLSX:
		return NewXLSXSource(d.Name, path, d.Sheet, shape), nil

	case config.KindSQLite:
		db, ok := r.dbs[path]
		if !ok {
			var err error
			if db, err = OpenSQLite(path); err != nil {
				return nil, err
			}
			r.dbs[path] = db
		}
		return NewSQLiteSource(d.Name, db, d.Table, shape)

	case config.KindRemote:
		rc := d.Remote
		timeout := rc.Timeout
		if timeout <= 0 {
			timeout = config.DefaultHTTPTimeout
		}
		rps := rc.RequestsPerSecond
		if rps <= 0 {
			rps = config.DefaultRemoteRPS
		}
		return NewRemoteSource(d.Name, RemoteOptions{
			BaseURL:       rc.BaseURL,
			Symbol:        rc.Symbol,
			Interval:      rc.Interval,
			Start:         rc.Start,
			End:           rc.End,
			TimestampPath: rc.TimestampPath,
			ClosePath:     rc.ClosePath,
			VolumePath:    rc.VolumePath,
			Client:        &http.Client{Timeout: timeout},
			Limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		})

	default:
		return nil, apierrors.NewConfigError("unsupported dataset kind", fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind))
	}
}

// Get returns the source for a dataset.
func (r *Registry) Get(name string) (Source, bool) {
	src, ok := r.sources[name]
	return src, ok
}

// Register adds or replaces a source. Used by tests and embedders.
func (r *Registry) Register(src Source) {
	r.sources[src.Name()] = src
}

// Names returns the registered dataset names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every database handle the registry opened.
func (r *Registry) Close() error {
	var errs []error
	for path, db := range r.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
			continue
		}
		r.logger.Debug("Closed database handle", slog.String("path", path))
	}
	r.dbs = map[string]*sql.DB{}
	return errors.Join(errs...)
}
