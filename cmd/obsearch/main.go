// Package main provides the obsearch command line.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("obsearch failed")
		os.Exit(1)
	}
}
