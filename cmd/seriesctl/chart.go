package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"seriesdash/internal/chart"
	"seriesdash/internal/services"
)

type chartCmd struct {
	out       io.Writer
	selection selectionFlags
	format    string
	output    string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "render the selected series as a PNG or SVG chart" }
func (*chartCmd) Usage() string {
	return `seriesctl chart [selection flags] [-format png|svg] [-o <file>] <dataset>

  Renders the selected series with its annotation markers. Without -o the
  image is written to the exports directory as <dataset>_<key>.<format>;
  -o - writes it to stdout.
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	c.selection.register(f)
	f.StringVar(&c.format, "format", "png", "image format: png or svg")
	f.StringVar(&c.output, "o", "", "output file, or - for stdout")
}

func (c *chartCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	dataset, err := datasetArg(f)
	if err != nil {
		return fail(err)
	}
	format, err := chart.ParseFormat(c.format)
	if err != nil {
		return fail(err)
	}

	ws, err := openWorkspace()
	if err != nil {
		return fail(err)
	}
	defer ws.Close()

	req, err := c.selection.request(ws.logger)
	if err != nil {
		return fail(err)
	}

	if c.output == "-" {
		if err := ws.service.Chart(ctx, dataset, req, format, c.out); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	path := c.output
	if path == "" {
		name := strings.TrimSuffix(services.ExportFilename(dataset, req), ".csv") + "." + string(format)
		if err := os.MkdirAll(ws.paths.ExportsDir, 0755); err != nil {
			return fail(err)
		}
		path = ws.paths.GetExportPath(name)
	}

	file, err := os.Create(path)
	if err != nil {
		return fail(err)
	}
	if err := ws.service.Chart(ctx, dataset, req, format, file); err != nil {
		file.Close()
		os.Remove(path)
		return fail(err)
	}
	if err := file.Close(); err != nil {
		return fail(err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fmt.Fprintln(c.out, abs)
	return subcommands.ExitSuccess
}
