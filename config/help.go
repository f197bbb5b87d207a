package config

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
)

const HelpMessage = `geo-tracker: realtime multi-party position sharing

Usage:
  tracker -mode relay  [-config-path config.yaml]
  tracker -mode client [-config-path config.yaml] [-name "Alice"] [-server ws://host:3000/ws]

Modes:
  relay   websocket relay: assigns participant ids and fans positions out to every participant
  client  one participant: publishes its own position and tracks everybody else

Client commands (stdin):
  dest <lat> <lon>   select a destination and route to it
  list               print known participants
  quit               leave

Flags:
`

func PrintHelp() {
	fmt.Print(HelpMessage)
	flag.PrintDefaults()
}

// PrintConfig writes the effective configuration without secrets
func PrintConfig(cfg *Config) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "mode\t%s\n", cfg.Mode)
	fmt.Fprintf(w, "log level\t%s\n", cfg.LogLevel)

	switch cfg.Mode {
	case types.RelayService:
		fmt.Fprintf(w, "relay port\t%s\n", cfg.Relay.Port)
		fmt.Fprintf(w, "broker\t%s\n", cfg.Relay.Broker)
		fmt.Fprintf(w, "snapshot store\t%s (ttl %s)\n", cfg.Relay.Snapshot, cfg.Relay.SnapshotTTL)
	case types.ClientService:
		fmt.Fprintf(w, "server\t%s\n", cfg.Client.ServerURL)
		fmt.Fprintf(w, "user name\t%s\n", cfg.Client.UserName)
		fmt.Fprintf(w, "location source\t%s\n", cfg.Location.Source)
		fmt.Fprintf(w, "router\t%s (%s)\n", cfg.Routing.OSRMURL, cfg.Routing.Profile)
	}
	fmt.Fprintf(w, "tracing\t%t\n", cfg.Tracing.Enabled)
}
