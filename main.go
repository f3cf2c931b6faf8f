package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/mediaload/internal"
	"github.com/hbomb79/mediaload/pkg/logger"
	"github.com/joho/godotenv"
)

var log = logger.Get("Main")

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (optional)")
	envPath := flag.String("env-file", ".env", "path to a dotenv file to load before reading configuration")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), internal.ConfigUsage())
	}
	flag.Parse()

	// Variables already present in the environment are never overridden
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		log.Emit(logger.WARNING, "Failed to load %s: %v\n", *envPath, err)
	}

	config := internal.MediaLoadConfig{}
	var err error
	if *configPath != "" {
		err = config.LoadFromFile(*configPath)
	} else {
		err = config.LoadFromEnv()
	}
	if err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetMinLoggingLevel(logger.ParseLevel(config.LogLevel).Level())

	mediaLoad, err := internal.New(config)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to initialise MediaLoad: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mediaLoad.Run(ctx); err != nil {
		log.Emit(logger.FATAL, "MediaLoad stopped due to error: %v\n", err)
		os.Exit(1)
	}

	log.Emit(logger.STOP, "MediaLoad shutdown complete\n")
}
