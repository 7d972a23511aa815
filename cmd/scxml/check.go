package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/tools"

	cli "github.com/urfave/cli/v3"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Compile and analyze documents, optionally running a scenario",
		ArgsUsage: "SOURCE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Write the analysis as JSON",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail if the analysis finds unreachable states or dead ends",
			},
			&cli.StringFlag{
				Name:  "scenario",
				Usage: "Scenario file to run against the (single) document",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return fmt.Errorf("check needs at least one document source")
			}

			e, err := newEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			out := cmd.Root().Writer
			dms := e.cfg.Datamodels()

			var problems int
			var last *core.Definition
			for _, src := range cmd.Args().Slice() {
				def, err := e.compile(ctx, src)
				if err != nil {
					return fmt.Errorf("%s: %w", src, err)
				}
				last = def

				dm := def.Document.Datamodel
				if dm == "" {
					dm = core.DefaultDatamodel
				}
				if _, have := dms[dm]; !have {
					return fmt.Errorf("%s: %w: %s", src, core.ErrUnknownDatamodel, dm)
				}

				a := tools.Analyze(def)
				if cmd.Bool("json") {
					js, err := json.MarshalIndent(a, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\n", js)
				} else {
					fmt.Fprintf(out, "%s: %d states, %d transitions\n", src, a.States, a.Transitions)
					fmt.Fprint(out, a.Summary())
				}
				problems += len(a.Unreachable) + len(a.DeadEnds)
			}

			if cmd.Bool("strict") && 0 < problems {
				return fmt.Errorf("%d problems", problems)
			}

			if filename := cmd.String("scenario"); filename != "" {
				if cmd.NArg() != 1 {
					return fmt.Errorf("a scenario needs exactly one document")
				}
				s, err := tools.ReadScenario(filename)
				if err != nil {
					return err
				}
				opts := &core.Options{
					Datamodels: dms,
					MaxTimers:  e.cfg.MaxTimers,
					Loader:     e.loader,
				}
				if err = s.Run(ctx, last, opts); err != nil {
					return fmt.Errorf("scenario %s: %w", filename, err)
				}
				fmt.Fprintf(out, "scenario %s: ok\n", filename)
			}

			return nil
		},
	}
}
