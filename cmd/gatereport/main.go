// Command gatereport renders every gate policy side by side over the
// current scoreboard.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"scoreloop/internal/cli"
	"scoreloop/internal/gate"
	"scoreloop/internal/pipeline"
)

func main() {
	opts := pipeline.GateReportOptions{Out: os.Stdout}
	os.Exit(cli.Main(pipeline.ToolGateReport, os.Args[1:],
		func(fs *flag.FlagSet) {
			fs.StringVar(&opts.SortBy, "sort", "n", "Sort by: "+strings.Join(gate.SortKeys, ", "))
			fs.IntVar(&opts.Top, "top", 0, "Show only the first N buckets (0 = all)")
			fs.StringVar(&opts.Format, "format", pipeline.FormatTable, "Output format: table or markdown")
		},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			return env.Runner.RunGateReport(ctx, opts)
		}))
}
