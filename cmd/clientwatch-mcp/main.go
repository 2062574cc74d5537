package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/data"
	"github.com/sey-media/clientwatch/mcpserver"
)

// clientwatch-mcp exposes the watcher's audit log as MCP tools over stdio.
// It opens the same sqlite database the watcher writes, read-only in spirit:
// the inspection tools only ever query.
func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	dbPath := os.Getenv("AUDIT_DB_PATH")
	if dbPath == "" {
		dbPath = "data/audit.db"
	}

	audit, err := data.NewAuditRepo(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("failed to open audit db")
	}
	defer audit.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	srv := mcpserver.NewServer(audit)
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("mcp server exited")
	}
}
