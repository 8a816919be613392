package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/julianstephens/fieldbook/internal/server"
	"github.com/julianstephens/fieldbook/internal/storage"
)

// dbPath returns the sqlite file backing the local synchronization server.
func dbPath(dataDir string) string {
	return filepath.Join(dataDir, "fieldbook.db")
}

type InitCmd struct{}

func (c *InitCmd) Run(appCtx *Context) error {
	path := dbPath(appCtx.DataDir)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("storage already initialized at %s", path)
	}

	store := storage.NewSQLiteStore(path)
	if err := store.Init(); err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Initialized fieldbook storage at %s\n", path)
	return nil
}

type ServeCmd struct {
	Port int `short:"p" help:"Port to listen on." default:"8642"`
}

func (c *ServeCmd) Run(appCtx *Context) error {
	store := storage.NewSQLiteStore(dbPath(appCtx.DataDir))
	if err := store.Init(); err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Serving fieldbook on :%d (data: %s)\n", c.Port, appCtx.DataDir)
	return server.Run(ctx, server.Config{Port: c.Port, Store: store})
}
