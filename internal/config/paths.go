package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Paths contains all the application paths
// This is the single source of truth for file locations; dataset paths,
// exports and logs are all resolved through it.
type Paths struct {
	BaseDir    string
	DataDir    string
	ExportsDir string
	LogsDir    string
}

// ResolvePaths turns the configured directories into absolute paths.
// Relative directories are taken from BaseDir, which defaults to the
// directory holding the executable.
func ResolvePaths(pc PathsConfig) (*Paths, error) {
	base := pc.BaseDir
	if base == "" {
		exeDir, err := executableDir()
		if err != nil {
			return nil, err
		}
		base = exeDir
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	under := func(dir, def string) string {
		if dir == "" {
			dir = def
		}
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(base, dir)
	}

	return &Paths{
		BaseDir:    base,
		DataDir:    under(pc.DataDir, DefaultDataDir),
		ExportsDir: under(pc.ExportsDir, DefaultExportsDir),
		LogsDir:    under(pc.LogsDir, DefaultLogsDir),
	}, nil
}

// executableDir returns the directory of the running binary
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ExportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// GetDataPath resolves a dataset file. Absolute paths are returned as is.
func (p *Paths) GetDataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.DataDir, name)
}

// GetExportPath returns the path for an export file. Only the base name of
// filename is used so exports cannot escape ExportsDir.
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filepath.Base(filepath.Clean("/"+filename)))
}

// Within reports whether path lies inside dir
func Within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// LogPathResolution logs path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("exports", p.ExportsDir),
			slog.String("logs", p.LogsDir),
		))
}
