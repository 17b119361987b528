package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
)

type datasetsCmd struct {
	out    io.Writer
	asJSON bool
}

func (*datasetsCmd) Name() string     { return "datasets" }
func (*datasetsCmd) Synopsis() string { return "list the configured datasets" }
func (*datasetsCmd) Usage() string {
	return `seriesctl datasets [-json]

  Lists every configured dataset with its kind, column roles and the
  columns that can be used with -in.
`
}

func (c *datasetsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "print the list as JSON")
}

func (c *datasetsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ws, err := openWorkspace()
	if err != nil {
		return fail(err)
	}
	defer ws.Close()

	list := ws.service.ListDatasets()
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(list); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDATE\tVALUE\tSELECTABLE\tTITLE")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Name, d.Kind, d.DateColumn, d.ValueColumn, strings.Join(d.Selectable, ","), d.Title)
	}
	if err := tw.Flush(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
