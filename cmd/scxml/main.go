/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is the scxml command: run documents, render them,
// check them, and manage stored documents.
//
//	scxml run turnstile.yaml
//	scxml render --format dot turnstile.yaml > turnstile.dot
//	scxml check --scenario turnstile-test.yaml turnstile.yaml
//	scxml --store bolt --store-file docs.db store put turnstile turnstile.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/loader"
	"github.com/Comcast/scxml/store"
	"github.com/Comcast/scxml/util"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v3"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewCommand().Run(ctx, os.Args); err != nil {
		log.WithError(err).Error("scxml")
		os.Exit(1)
	}
}

// NewCommand makes the scxml command.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:                  "scxml",
		Usage:                 "Run and inspect SCXML state machine documents",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Optional YAML config file",
				Sources: cli.EnvVars("SCXML_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "Base directory for document file names",
				Sources: cli.EnvVars("SCXML_DIR"),
			},
			&cli.StringFlag{
				Name:    "datamodel",
				Usage:   "Datamodel for documents that don't name one",
				Sources: cli.EnvVars("SCXML_DATAMODEL"),
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Store backend (mem, bolt, postgres)",
				Sources: cli.EnvVars("SCXML_STORE"),
			},
			&cli.StringFlag{
				Name:    "store-file",
				Usage:   "Database file for the bolt store",
				Sources: cli.EnvVars("SCXML_STORE_FILE"),
			},
			&cli.StringFlag{
				Name:    "store-dsn",
				Usage:   "Connection string for the postgres store (default from PG* variables)",
				Sources: cli.EnvVars("SCXML_STORE_DSN"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Debug logging",
				Sources: cli.EnvVars("SCXML_VERBOSE"),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			renderCommand(),
			checkCommand(),
			storeCommand(),
		},
	}
}

// config reads the config file (if any) and applies flags.
func config(cmd *cli.Command) (*Config, error) {
	cfg := &Config{}
	if filename := cmd.String("config"); filename != "" {
		var err error
		if cfg, err = ReadConfig(filename); err != nil {
			return nil, fmt.Errorf("config %s: %w", filename, err)
		}
	}

	set := func(flag string, dst *string) {
		if cmd.IsSet(flag) {
			*dst = cmd.String(flag)
		}
	}
	set("dir", &cfg.Dir)
	set("datamodel", &cfg.Datamodel)
	set("store", &cfg.Store.Backend)
	set("store-file", &cfg.Store.File)
	set("store-dsn", &cfg.Store.DSN)
	if cmd.IsSet("verbose") {
		cfg.Verbose = cmd.Bool("verbose")
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}

	util.SetLogging(cfg.Verbose)
	if cfg.Datamodel != "" {
		core.DefaultDatamodel = cfg.Datamodel
	}

	return cfg, nil
}

// env is what most commands need: the config, a store, and a loader
// that can read stored documents.
type env struct {
	cfg     *Config
	storage store.Storage
	loader  *loader.Loader
}

func newEnv(ctx context.Context, cmd *cli.Command) (*env, error) {
	cfg, err := config(cmd)
	if err != nil {
		return nil, err
	}
	st, err := cfg.OpenStorage(ctx)
	if err != nil {
		return nil, err
	}
	l := loader.NewLoader(cfg.Dir)
	l.Documents = st
	return &env{
		cfg:     cfg,
		storage: st,
		loader:  l,
	}, nil
}

func (e *env) Close(ctx context.Context) {
	if err := e.storage.Close(ctx); err != nil {
		log.WithError(err).Warn("store close")
	}
}

// compile loads and compiles the document at the source.
func (e *env) compile(ctx context.Context, src string) (*core.Definition, error) {
	doc, err := e.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return doc.Compile(ctx)
}
