package main

import (
	"fmt"
	"log"

	"github.com/aussiebroadwan/clubhouse/internal/identity/app"
	"github.com/common-nighthawk/go-figure"
)

func main() {
	cfg := app.LoadConfig()

	if cfg.LogFormat == "text" {
		figure.NewFigure("clubhouse", "cybermedium", true).Print()
		fmt.Println()
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
