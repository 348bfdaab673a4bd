package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/jwtauth/internal/logging"
	"github.com/dmitrijs2005/jwtauth/internal/server"
	"github.com/dmitrijs2005/jwtauth/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, err := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
