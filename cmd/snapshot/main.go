// Command snapshot aggregates the trainable set into a new scoreboard
// version and moves the current pointer to it.
package main

import (
	"context"
	"flag"
	"os"

	"scoreloop/internal/cli"
	"scoreloop/internal/domain"
	"scoreloop/internal/pipeline"
)

func main() {
	var opts pipeline.SnapshotOptions
	os.Exit(cli.Main(pipeline.ToolSnapshot, os.Args[1:],
		func(fs *flag.FlagSet) {
			fs.IntVar(&opts.MinN, "min-n", 0, "Minimum sample size (default from config)")
			fs.Float64Var(&opts.MinConf, "min-conf", 0, "Minimum confidence (default from config)")
			fs.StringVar(&opts.Trigger, "trigger", domain.TriggerManual, "Audit trigger: manual, scheduled or orchestrated")
		},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			return env.Runner.RunSnapshot(ctx, opts)
		},
		cli.WithMirrors()))
}
