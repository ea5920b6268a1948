// Command decide evaluates one trade proposal with the canonical gate
// policy and appends the signed decision to the ledger.
package main

import (
	"context"
	"flag"
	"os"

	"scoreloop/internal/cli"
	"scoreloop/internal/pipeline"
)

func main() {
	var opts pipeline.DecideOptions
	p := &opts.Proposal
	os.Exit(cli.Main(pipeline.ToolDecide, os.Args[1:],
		func(fs *flag.FlagSet) {
			fs.StringVar(&p.TradeID, "trade-id", "", "Trade id (required)")
			fs.StringVar(&p.ClientTradeID, "client-trade-id", "", "Client trade id")
			fs.StringVar(&p.AccountLabel, "account", "", "Account label (required)")
			fs.StringVar(&p.Key.SetupType, "setup-type", "", "Setup type")
			fs.StringVar(&p.Key.Symbol, "symbol", "", "Symbol")
			fs.StringVar(&p.Key.Timeframe, "timeframe", "", "Timeframe")
			fs.BoolVar(&opts.Enforce, "enforce", false, "Record the decision as enforced instead of proposed")
		},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			return env.Runner.RunDecide(ctx, opts)
		}))
}
