package main

import (
	"os"

	"PriceForecaster/cmd/forecaster/commands"
	"PriceForecaster/internal/apperrors"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(apperrors.ExitCode(err))
	}
}
