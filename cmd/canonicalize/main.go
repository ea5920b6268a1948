// Command canonicalize filters the raw trade outcome stream down to
// outcome.v1 rows and quarantines the rest.
package main

import (
	"context"
	"os"

	"scoreloop/internal/cli"
	"scoreloop/internal/pipeline"
)

func main() {
	os.Exit(cli.Main(pipeline.ToolCanonicalize, os.Args[1:], nil,
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			return env.Runner.RunCanonicalize(ctx)
		}))
}
