package sources

import (
	"context"
	"errors"

	"seriesdash/internal/series"
)

// Source loads a fresh table on every call. Implementations never cache.
type Source interface {
	Name() string
	Load(ctx context.Context) (series.Table, error)
}

// Params are per-request overrides for sources that take user input,
// such as the symbol and period of a remote price history.
type Params struct {
	Symbol   string
	Interval string
	Start    string
	End      string
}

// IsZero reports whether no parameter is set.
func (p Params) IsZero() bool { return p == Params{} }

// Parameterized is implemented by sources whose request can be changed per call.
type Parameterized interface {
	Source
	WithParams(p Params) (Source, error)
}

var (
	ErrUnknownKind      = errors.New("unknown source kind")
	ErrInvalidTable     = errors.New("invalid table name")
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrSymbolRequired   = errors.New("symbol is required")
	ErrEmptySource      = errors.New("source has no header row")
	ErrNotParameterized = errors.New("source does not accept parameters")
)

// Shape renames and reorders the columns of a loaded table the way a
// dataset is configured, so each source only deals with raw loading.
type Shape struct {
	Rename map[string]string
	Order  []string
}

func (s Shape) apply(t series.Table) series.Table {
	t = t.Rename(s.Rename)
	if len(s.Order) > 0 {
		t = t.Reorder(s.Order...)
	}
	return t
}

// Apply returns src with p applied when it accepts parameters. A zero p
// returns src unchanged; parameters for a plain source are an error.
func Apply(src Source, p Params) (Source, error) {
	if p.IsZero() {
		return src, nil
	}
	ps, ok := src.(Parameterized)
	if !ok {
		return nil, ErrNotParameterized
	}
	return ps.WithParams(p)
}
