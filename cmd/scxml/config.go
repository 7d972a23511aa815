package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/interpreters"
	"github.com/Comcast/scxml/interpreters/ecmascript"
	"github.com/Comcast/scxml/sio"
	"github.com/Comcast/scxml/store"
	"github.com/Comcast/scxml/store/bolt"
	"github.com/Comcast/scxml/store/postgres"

	"gopkg.in/yaml.v3"
)

// ConfigVersion is the config file version this program understands.
const ConfigVersion = "1"

var BadConfigVersion = errors.New("unsupported config version")

// Config is the optional configuration file.  Command-line flags
// override what's here.
type Config struct {
	Version string `yaml:"version"`

	// Dir is the base directory for document file names.
	Dir string `yaml:"dir"`

	// Datamodel is used for documents that don't name one.
	Datamodel string `yaml:"datamodel"`

	// Libraries is a directory for ECMAScript require().
	Libraries string `yaml:"libraries"`

	// MaxTimers limits pending delayed sends per session.
	MaxTimers int `yaml:"maxTimers"`

	Verbose bool `yaml:"verbose"`

	Store StoreConf `yaml:"store"`

	// MQTT, if given, enables the MQTT IO processor.
	MQTT *sio.MQTTConf `yaml:"mqtt"`

	// HTTP, if given, enables the Basic HTTP and WebSocket IO
	// processors.
	HTTP *HTTPConf `yaml:"http"`
}

type StoreConf struct {
	// Backend is "mem", "bolt", or "postgres".
	Backend string `yaml:"backend"`

	// File is the bolt database file.
	File string `yaml:"file"`

	// DSN is the Postgres connection string.  Defaults to what
	// the PG* environment variables say.
	DSN string `yaml:"dsn"`
}

type HTTPConf struct {
	// Listen is the address for the HTTP server, like ":8080".
	Listen string `yaml:"listen"`

	// Base is the externally visible base URL of the server.
	// Defaults to http://localhost plus the Listen port.
	Base string `yaml:"base"`

	// Timeout is for outbound HTTP requests.
	Timeout time.Duration `yaml:"timeout"`
}

// ReadConfig reads a YAML config file.
func ReadConfig(filename string) (*Config, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(bs)
}

// ParseConfig parses and checks a YAML config.
func ParseConfig(bs []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(bs, &c); err != nil {
		return nil, err
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Check reports a problem with the config.
func (c *Config) Check() error {
	switch c.Version {
	case ConfigVersion, "":
	default:
		return fmt.Errorf("%w: %q (want %q)", BadConfigVersion, c.Version, ConfigVersion)
	}
	switch c.Store.Backend {
	case "", "mem", "bolt", "postgres":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "bolt" && c.Store.File == "" {
		return fmt.Errorf("bolt store needs a file")
	}
	if c.Datamodel != "" {
		if _, have := c.Datamodels()[c.Datamodel]; !have {
			return fmt.Errorf("%w: %s", core.ErrUnknownDatamodel, c.Datamodel)
		}
	}
	if c.MQTT != nil && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt needs a broker")
	}
	return nil
}

// Datamodels returns the datamodel factories for sessions.
func (c *Config) Datamodels() map[string]core.DatamodelFactory {
	if c.Libraries != "" {
		return interpreters.WithLibraries(ecmascript.MakeFileLibraryProvider(c.Libraries))
	}
	return interpreters.Standard()
}

// OpenStorage makes and opens the configured store.
func (c *Config) OpenStorage(ctx context.Context) (store.Storage, error) {
	var s store.Storage
	switch c.Store.Backend {
	case "", "mem":
		s = store.NewMemStorage()
	case "bolt":
		b, err := bolt.NewStorage(c.Store.File)
		if err != nil {
			return nil, err
		}
		s = b
	case "postgres":
		dsn := c.Store.DSN
		if dsn == "" {
			dsn = postgres.EnvDSN()
		}
		s = postgres.NewStorage(dsn)
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
