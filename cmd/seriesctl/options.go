package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"
)

type optionsCmd struct {
	out io.Writer
}

func (*optionsCmd) Name() string     { return "options" }
func (*optionsCmd) Synopsis() string { return "list the distinct values of a selectable column" }
func (*optionsCmd) Usage() string {
	return `seriesctl options <dataset> <column>

  Prints the distinct non-empty values of a selectable column, one per
  line, in order of first appearance.
`
}

func (*optionsCmd) SetFlags(*flag.FlagSet) {}

func (c *optionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprint(f.Output(), c.Usage())
		return fail(errors.New("expected a dataset and a column"))
	}

	ws, err := openWorkspace()
	if err != nil {
		return fail(err)
	}
	defer ws.Close()

	values, err := ws.service.Options(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		return fail(err)
	}
	for _, v := range values {
		fmt.Fprintln(c.out, v)
	}
	return subcommands.ExitSuccess
}
