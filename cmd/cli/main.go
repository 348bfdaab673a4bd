package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/jwtauth/internal/client/cli"
	"github.com/dmitrijs2005/jwtauth/internal/client/config"
	"github.com/dmitrijs2005/jwtauth/internal/flagx"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer app.Close()

	if err := app.Run(ctx, flagx.Positional(os.Args[1:], config.FlagsWithValue)); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}

}
