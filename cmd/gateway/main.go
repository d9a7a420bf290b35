package main

import (
	"log"

	"github.com/aussiebroadwan/tollgate/internal/gateway/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize gateway: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("gateway error: %v", err)
	}
}
