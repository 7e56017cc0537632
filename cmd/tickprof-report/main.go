package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/tickprof/internal/logutil"
)

func main() {
	logutil.ConfigureLogger()

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("tickprof-report failed")
		os.Exit(1)
	}
}
