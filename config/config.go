// Package config loads the settings of the spacesync programs.
//
// Settings come from, in increasing priority, the defaults, a dotenv file
// and SPACESYNC_* environment variables. Command line flags override all of
// them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/spacegame/netsync/sim"
	"github.com/spacegame/netsync/transport/ws"
)

// DefaultFile is the dotenv file read when no path is given.
const DefaultFile = ".env"

// Config holds every setting.
type Config struct {
	ListenAddr        string
	ServerURL         string
	PlayerName        string
	TickRate          float64
	QueueCapacity     int
	CompressThreshold int
	InboundRate       float64
	InboundBurst      int
	RecordPath        string
	MonitorPort       int
	OpenMonitor       bool
	LogTraffic        bool
}

// Default returns the default settings.
func Default() Config {
	transport := ws.DefaultConfig()

	return Config{
		ListenAddr:        ":7878",
		ServerURL:         "ws://127.0.0.1:7878/",
		PlayerName:        "pilot",
		TickRate:          30,
		QueueCapacity:     0,
		CompressThreshold: transport.CompressThreshold,
		InboundRate:       float64(transport.InboundRate),
		InboundBurst:      transport.InboundBurst,
	}
}

type setter func(c *Config, value string) error

var variables = map[string]setter{
	"SPACESYNC_LISTEN": func(c *Config, v string) error {
		c.ListenAddr = v
		return nil
	},
	"SPACESYNC_SERVER_URL": func(c *Config, v string) error {
		c.ServerURL = v
		return nil
	},
	"SPACESYNC_PLAYER": func(c *Config, v string) error {
		c.PlayerName = v
		return nil
	},
	"SPACESYNC_TICK_RATE": func(c *Config, v string) error {
		return parseFloat(v, &c.TickRate)
	},
	"SPACESYNC_QUEUE_CAPACITY": func(c *Config, v string) error {
		return parseInt(v, &c.QueueCapacity)
	},
	"SPACESYNC_COMPRESS_THRESHOLD": func(c *Config, v string) error {
		return parseInt(v, &c.CompressThreshold)
	},
	"SPACESYNC_INBOUND_RATE": func(c *Config, v string) error {
		return parseFloat(v, &c.InboundRate)
	},
	"SPACESYNC_INBOUND_BURST": func(c *Config, v string) error {
		return parseInt(v, &c.InboundBurst)
	},
	"SPACESYNC_RECORD": func(c *Config, v string) error {
		c.RecordPath = v
		return nil
	},
	"SPACESYNC_MONITOR_PORT": func(c *Config, v string) error {
		return parseInt(v, &c.MonitorPort)
	},
	"SPACESYNC_OPEN_MONITOR": func(c *Config, v string) error {
		return parseBool(v, &c.OpenMonitor)
	},
	"SPACESYNC_LOG_TRAFFIC": func(c *Config, v string) error {
		return parseBool(v, &c.LogTraffic)
	},
}

// Load reads the settings. An empty path reads DefaultFile if it exists. A
// file given explicitly must exist.
func Load(path string) (Config, error) {
	c := Default()

	file := path
	if file == "" {
		file = DefaultFile
	}

	values, err := godotenv.Read(file)
	if err != nil {
		if path != "" || !errors.Is(err, fs.ErrNotExist) {
			return c, fmt.Errorf("read %s: %w", file, err)
		}

		values = map[string]string{}
	}

	for name := range variables {
		if v, found := os.LookupEnv(name); found {
			values[name] = v
		}
	}

	for name, v := range values {
		set, found := variables[name]
		if !found {
			continue
		}

		if err := set(&c, v); err != nil {
			return c, fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.TickRate <= 0 {
		return c, fmt.Errorf("tick rate must be positive, got %g", c.TickRate)
	}

	return c, nil
}

// Freq returns the tick rate.
func (c Config) Freq() sim.Freq {
	return sim.Freq(c.TickRate) * sim.Hz
}

// Transport returns the websocket transport settings.
func (c Config) Transport() ws.Config {
	t := ws.DefaultConfig()
	t.CompressThreshold = c.CompressThreshold
	t.InboundRate = rate.Limit(c.InboundRate)
	t.InboundBurst = c.InboundBurst

	return t
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	*dst = n

	return nil
}

func parseFloat(v string, dst *float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}

	*dst = f

	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*dst = b

	return nil
}

// MonitorEnabled tells if the HTTP monitor should run. Opening the monitor
// without a port picks a random one.
func (c Config) MonitorEnabled() bool {
	return c.MonitorPort > 0 || c.OpenMonitor
}
