package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/filerelay/internal/app"
	"github.com/dmitrijs2005/filerelay/internal/config"
	"github.com/dmitrijs2005/filerelay/internal/logging"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stdout, cfg.LogLevel)

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
