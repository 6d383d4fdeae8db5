// Package main is the entry point for the game catalog server.
package main

import (
	"os"

	"github.com/squadfinder/game-catalog-server/cmd/gamecatd/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
