// Command join rebuilds the trainable outcome set by joining canonical
// outcomes to their setup contexts.
package main

import (
	"context"
	"flag"
	"os"

	"scoreloop/internal/cli"
	"scoreloop/internal/pipeline"
)

func main() {
	var ignoreCutover bool
	os.Exit(cli.Main(pipeline.ToolJoin, os.Args[1:],
		func(fs *flag.FlagSet) {
			fs.BoolVar(&ignoreCutover, "ignore-cutover", false, "Ignore join.cutover even if configured")
		},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			if ignoreCutover {
				env.Config.Join.Cutover = nil
			}
			return env.Runner.RunJoin(ctx)
		},
		cli.WithMirrors()))
}
