package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"
)

type exportCmd struct {
	out       io.Writer
	selection selectionFlags
	save      bool
	filename  string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the selected series as CSV" }
func (*exportCmd) Usage() string {
	return `seriesctl export [selection flags] [-save [-name <file.csv>]] <dataset>

  Writes the selected rows as CSV to stdout, or with -save into the
  exports directory, printing the path of the written file.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.selection.register(f)
	f.BoolVar(&c.save, "save", false, "write into the exports directory instead of stdout")
	f.StringVar(&c.filename, "name", "", "file name for -save (default <dataset>_<key>.csv)")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	if !c.save {
		if err := ws.service.Export(ctx, dataset, req, c.out); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	path, err := ws.service.ExportFile(ctx, dataset, req, c.filename)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintln(c.out, path)
	return subcommands.ExitSuccess
}
