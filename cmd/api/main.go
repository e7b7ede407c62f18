package main

import (
	"flag"
	"log"

	"github.com/resumeforge/backend/internal/config"
	appconfig "github.com/resumeforge/backend/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	config.LoadEnvFiles([]string{".env.local", ".env"})

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := appconfig.NewApp(cfg)
	if err := app.Run(); err != nil {
		log.Fatalf("Service failed: %v", err)
	}
}
