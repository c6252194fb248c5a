package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/videotube/internal/server"
	"github.com/dmitrijs2005/videotube/internal/server/config"
)

func main() {

	ctx := context.Background()
	logger := server.NewLogger()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to start", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}

}
