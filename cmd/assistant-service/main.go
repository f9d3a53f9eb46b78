package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/marzetti/salon-assistant/assistantservice"
)

func main() {
	if err := assistantservice.Run(); err != nil {
		log.Error().Err(err).Msg("assistant-service exited with error")
		os.Exit(1)
	}
}
