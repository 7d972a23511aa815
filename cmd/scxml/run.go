package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/crew"
	"github.com/Comcast/scxml/sio"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a document, reading events from stdin and writing trace lines to stdout",
		ArgsUsage: "SOURCE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Session id (generated if not provided)",
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "JSON object overriding the document's top-level data",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "After input ends, wait for the session to terminate instead of stopping it",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Don't print event and log trace lines",
			},
			&cli.BoolFlag{
				Name:  "timestamps",
				Usage: "Prefix output lines with timestamps",
			},
			&cli.BoolFlag{
				Name:  "tags",
				Usage: "Prefix output lines with tags",
			},
			&cli.BoolFlag{
				Name:  "echo",
				Usage: "Echo input lines",
			},
			&cli.BoolFlag{
				Name:  "shell-expand",
				Usage: "Expand <<COMMAND>> in input lines (use at your own risk)",
			},
			&cli.StringFlag{
				Name:    "mqtt-broker",
				Usage:   "MQTT broker URL, which enables the MQTT IO processor",
				Sources: cli.EnvVars("SCXML_MQTT_BROKER"),
			},
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "HTTP address, which enables the Basic HTTP and WebSocket IO processors",
				Sources: cli.EnvVars("SCXML_LISTEN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("run needs one document source")
			}

			e, err := newEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close(ctx)
			cfg := e.cfg

			if broker := cmd.String("mqtt-broker"); broker != "" {
				if cfg.MQTT == nil {
					cfg.MQTT = &sio.MQTTConf{}
				}
				cfg.MQTT.Broker = broker
			}
			if addr := cmd.String("listen"); addr != "" {
				if cfg.HTTP == nil {
					cfg.HTTP = &HTTPConf{}
				}
				cfg.HTTP.Listen = addr
			}

			var data map[string]interface{}
			if js := cmd.String("data"); js != "" {
				if err := json.Unmarshal([]byte(js), &data); err != nil {
					return fmt.Errorf("bad --data: %w", err)
				}
			}

			io := sio.NewStdio(cmd.Bool("shell-expand"))
			io.In = cmd.Root().Reader
			io.Out = cmd.Root().Writer
			io.Timestamps = cmd.Bool("timestamps")
			io.Tags = cmd.Bool("tags")
			io.EchoInput = cmd.Bool("echo")
			trace := io.Trace()
			trace.Quiet = cmd.Bool("quiet")

			c := crew.NewCrew("scxml", e.loader)
			c.Storage = e.storage
			c.Verbose = cfg.Verbose
			c.Options = core.Options{
				Datamodels: cfg.Datamodels(),
				MaxTimers:  cfg.MaxTimers,
				Monitor:    trace,
				Verbose:    cfg.Verbose,
			}

			ps, closer, err := listen(cfg, c)
			if err != nil {
				return err
			}
			defer closer()
			c.Options.IOProcessors = ps

			s, err := c.Spawn(ctx, cmd.String("id"), &crew.Source{URL: cmd.Args().First()}, data)
			if err != nil {
				return err
			}

			if err = io.Read(ctx, c, s.Id()); err != nil && !errors.Is(err, core.ErrTerminated) {
				log.WithError(err).Warn("input")
			}
			if !cmd.Bool("wait") {
				s.Stop()
			}
			select {
			case <-s.Done():
			case <-ctx.Done():
				s.Stop()
				<-s.Done()
			}

			io.Printf("final", "%s %s\n", s.Id(), strings.Join(s.FinalConfiguration(), " "))

			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return c.StopAll(stopCtx)
		},
	}
}

// listen starts the network IO processors the config asks for.  The
// returned function shuts them down.
func listen(cfg *Config, c *crew.Crew) ([]core.IOProcessor, func(), error) {
	var (
		ps      []core.IOProcessor
		closers []func()
	)
	closer := func() {
		for _, f := range closers {
			f()
		}
	}

	if cfg.MQTT != nil {
		client := sio.NewMQTTClient(cfg.MQTT)
		token := client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return nil, closer, fmt.Errorf("mqtt connect to %s timed out", cfg.MQTT.Broker)
		}
		if err := token.Error(); err != nil {
			return nil, closer, fmt.Errorf("mqtt connect: %w", err)
		}
		closers = append(closers, func() { client.Disconnect(250) })

		p := &sio.MQTTProcessor{
			Client: client,
			Router: c,
			Prefix: cfg.MQTT.Prefix,
			QoS:    1,
		}
		if err := p.Subscribe(client); err != nil {
			closer()
			return nil, nil, err
		}
		ps = append(ps, p)
		log.WithField("broker", cfg.MQTT.Broker).Info("mqtt processor")
	}

	if cfg.HTTP != nil && cfg.HTTP.Listen != "" {
		base := cfg.HTTP.Base
		if base == "" {
			host := cfg.HTTP.Listen
			if strings.HasPrefix(host, ":") {
				host = "localhost" + host
			}
			base = "http://" + host
		}

		hp, err := sio.NewHTTPProcessor(base+"/events", c)
		if err != nil {
			closer()
			return nil, nil, err
		}
		if 0 < cfg.HTTP.Timeout {
			hp.Timeout = cfg.HTTP.Timeout
		}
		wp := sio.NewWebSocketProcessor("ws"+strings.TrimPrefix(base, "http")+"/ws", c)

		mux := http.NewServeMux()
		mux.Handle("/events", hp)
		mux.Handle("/ws", wp)
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(c.Status()); err != nil {
				log.WithError(err).Warn("sessions")
			}
		})

		srv := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server")
			}
		}()
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})

		ps = append(ps, hp, wp)
		log.WithField("listen", cfg.HTTP.Listen).WithField("base", base).Info("http processors")
	}

	return ps, closer, nil
}
