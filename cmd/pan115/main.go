package main

import (
	"os"

	"github.com/cloudpan/pan115/internal/cli"
)

// Version information - injected via LDFLAGS at build time.
var (
	version   = "v0.3.0-dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
