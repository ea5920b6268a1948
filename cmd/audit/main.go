// Command audit verifies the scoreboard audit hash chain and lists
// versions left behind by interrupted commits.
package main

import (
	"context"
	"os"

	"scoreloop/internal/cli"
	"scoreloop/internal/pipeline"
)

func main() {
	os.Exit(cli.Main(pipeline.ToolAudit, os.Args[1:], nil,
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			return env.Runner.RunAudit(ctx)
		}))
}
