package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Comcast/scxml/tools"

	cli "github.com/urfave/cli/v3"
)

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a document as Graphviz dot, Mermaid, or HTML",
		ArgsUsage: "SOURCE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (dot, mermaid, html)",
				Value:   "dot",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file (default stdout)",
			},
			&cli.StringFlag{
				Name:  "current",
				Usage: "State to highlight",
			},
			&cli.StringSliceFlag{
				Name:  "css",
				Usage: "CSS files for html",
			},
			&cli.BoolFlag{
				Name:  "graph",
				Usage: "Include a diagram in html",
				Value: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("render needs one document source")
			}

			e, err := newEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			def, err := e.compile(ctx, cmd.Args().First())
			if err != nil {
				return err
			}

			var out io.Writer = cmd.Root().Writer
			if filename := cmd.String("out"); filename != "" {
				f, err := os.Create(filename)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			switch cmd.String("format") {
			case "dot":
				return tools.Dot(def, out, "", cmd.String("current"))
			case "mermaid":
				return tools.Mermaid(def, out, nil, cmd.String("current"))
			case "html":
				return tools.RenderPage(def, out, cmd.StringSlice("css"), cmd.Bool("graph"))
			default:
				return fmt.Errorf("unknown format %q", cmd.String("format"))
			}
		},
	}
}
