package cmd

import (
	"log"
	"os"

	"github.com/spacegame/netsync/config"
	"github.com/spacegame/netsync/datarecording"
	"github.com/spacegame/netsync/monitoring"
	"github.com/spacegame/netsync/netsync"
)

// observe attaches the traffic logger, the traffic recorder and the monitor
// to a context, as the settings ask. The returned function releases them.
func observe(c *netsync.Context, cfg config.Config) func() {
	var closers []func()

	if cfg.LogTraffic {
		c.AcceptHook(netsync.NewTrafficLogger(
			log.New(os.Stderr, "", log.Lmicroseconds)))
	}

	if cfg.RecordPath != "" {
		recorder := datarecording.New(cfg.RecordPath)
		c.AcceptHook(datarecording.NewTrafficRecorder(recorder))
		closers = append(closers, func() {
			if err := recorder.Close(); err != nil {
				log.Printf("Error closing recording: %v", err)
			}
		})
	}

	if cfg.MonitorEnabled() {
		monitor := monitoring.NewMonitor().
			WithPortNumber(cfg.MonitorPort).
			WithBrowser(cfg.OpenMonitor)
		monitor.RegisterContext(c)

		if _, err := monitor.StartServer(); err != nil {
			log.Fatalf("Error starting monitor: %v", err)
		}

		closers = append(closers, func() { _ = monitor.StopServer() })
	}

	return func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
