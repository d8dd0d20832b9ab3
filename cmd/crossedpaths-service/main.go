package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/crossedpaths/crossedpaths/server/crossedpathsservice"
	"github.com/crossedpaths/crossedpaths/server/internal/config"
	"github.com/crossedpaths/crossedpaths/server/internal/logger"
)

func main() {
	// Optional build-target flag override (local | cloud-dev | cloud)
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud-dev, cloud)")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flag.Parse()

	// A missing file is fine; real environment variables win over the file.
	_ = godotenv.Load(*envFile)

	log := logger.New("crossed-paths-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		cfg.RemoteDriver, cfg.LocalDriver = "auto", "auto"
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("Invalid build-target override")
		}
	}

	if err := crossedpathsservice.Run(cfg); err != nil {
		os.Exit(1)
	}
}
