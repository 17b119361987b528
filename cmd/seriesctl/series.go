package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"

	"github.com/google/subcommands"

	"seriesdash/internal/services"
)

type seriesCmd struct {
	out       io.Writer
	selection selectionFlags
	compact   bool
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "run the pipeline and print the series as JSON" }
func (*seriesCmd) Usage() string {
	return `seriesctl series [-key <id>] [-in <column>=<v1,v2>] [-min <y>] [-max <y>] <dataset>

  Loads the dataset, applies the selection and prints the same JSON
  document as GET /api/datasets/<dataset>/series. An empty selection is
  not an error: the document has "empty": true.
`
}

func (c *seriesCmd) SetFlags(f *flag.FlagSet) {
	c.selection.register(f)
	f.BoolVar(&c.compact, "compact", false, "print JSON on one line")
}

func (c *seriesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	dataset, err := datasetArg(f)
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
	res, err := ws.service.Series(ctx, dataset, req)
	if err != nil {
		return fail(err)
	}

	enc := json.NewEncoder(c.out)
	if !c.compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(services.NewSeriesResponse(dataset, res)); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
