// Package main .
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/foxlau/github-stars-manager/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := cli.NewRootCommand(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalln("Error occurred:", err)
	}
}
