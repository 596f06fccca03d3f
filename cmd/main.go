package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/smartinventory-backend/internal/app"
	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start(ctx)

	if !envutil.Bool("RUN_SERVER", true) {
		a.Log.Info("HTTP server disabled, running worker only")
		<-ctx.Done()
		return
	}
	if err := a.Run(ctx); err != nil {
		a.Log.Error("Server stopped", "error", err)
		a.Close()
		os.Exit(1)
	}
}
