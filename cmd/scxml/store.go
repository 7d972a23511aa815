package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func storeCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Manage stored documents and session records",
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "Store a document (after checking that it compiles)",
				ArgsUsage: "NAME FILE",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return fmt.Errorf("put needs a name and a file")
					}
					e, err := newEnv(ctx, cmd)
					if err != nil {
						return err
					}
					defer e.Close(ctx)

					name, filename := cmd.Args().Get(0), cmd.Args().Get(1)
					bs, err := os.ReadFile(filename)
					if err != nil {
						return err
					}
					doc, err := e.loader.Parse(ctx, bs)
					if err != nil {
						return fmt.Errorf("%s: %w", filename, err)
					}
					if _, err = doc.Compile(ctx); err != nil {
						return fmt.Errorf("%s: %w", filename, err)
					}
					return e.storage.PutDocument(ctx, name, bs)
				},
			},
			{
				Name:      "get",
				Usage:     "Write a stored document",
				ArgsUsage: "NAME",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("get needs a name")
					}
					e, err := newEnv(ctx, cmd)
					if err != nil {
						return err
					}
					defer e.Close(ctx)

					bs, err := e.storage.GetDocument(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					_, err = cmd.Root().Writer.Write(bs)
					return err
				},
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List stored documents",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					e, err := newEnv(ctx, cmd)
					if err != nil {
						return err
					}
					defer e.Close(ctx)

					names, err := e.storage.ListDocuments(ctx)
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Fprintln(cmd.Root().Writer, name)
					}
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "Remove a stored document",
				ArgsUsage: "NAME",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("rm needs a name")
					}
					e, err := newEnv(ctx, cmd)
					if err != nil {
						return err
					}
					defer e.Close(ctx)
					return e.storage.RemDocument(ctx, cmd.Args().First())
				},
			},
			{
				Name:      "session",
				Usage:     "Write the record of a terminated session",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("session needs an id")
					}
					e, err := newEnv(ctx, cmd)
					if err != nil {
						return err
					}
					defer e.Close(ctx)

					r, err := e.storage.GetSession(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.Root().Writer, "%s %s final=%v terminated=%s\n",
						r.Id, r.Name, r.Final, r.Terminated.Format("2006-01-02T15:04:05Z07:00"))
					return nil
				},
			},
		},
	}
}
