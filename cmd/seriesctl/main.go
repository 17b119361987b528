// Command seriesctl runs the series pipeline from the command line against
// the datasets of a seriesdash config file.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path"

	"github.com/google/subcommands"

	"seriesdash/internal/infrastructure"
)

var (
	configFile = flag.String("config", "", "YAML config file (defaults to $SERIESDASH_CONFIG or ./seriesdash.yaml)")
	logLevel   = flag.String("log-level", "warn", "log level for pipeline diagnostics on stderr")
)

// commands returns every subcommand, writing results to out.
func commands(out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&datasetsCmd{out: out},
		&optionsCmd{out: out},
		&seriesCmd{out: out},
		&exportCmd{out: out},
		&chartCmd{out: out},
	}
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands(os.Stdout) {
		commander.Register(c, "")
	}

	flag.Parse()
	// one trace id per invocation ties the pipeline log lines together
	ctx := infrastructure.EnsureTraceID(context.Background())
	os.Exit(int(commander.Execute(ctx)))
}
