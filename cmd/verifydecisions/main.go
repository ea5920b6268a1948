// Command verifydecisions checks the decision ledger for true conflicts
// and writes a deduplicated copy.
package main

import (
	"context"
	"flag"
	"os"

	"scoreloop/internal/cli"
	"scoreloop/internal/pipeline"
)

func main() {
	var opts pipeline.VerifyOptions
	os.Exit(cli.Main(pipeline.ToolVerifyDecisions, os.Args[1:],
		func(fs *flag.FlagSet) {
			fs.StringVar(&opts.ReportPath, "report", "", "Write the JSON determinism report to this path")
		},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			return env.Runner.RunVerifyDecisions(ctx, opts)
		}))
}
