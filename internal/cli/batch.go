package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"promptscan-backend/internal/batch"
)

// Execute implements the go-flags Commander interface for BatchCommand.
func (c *BatchCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.execute(ctx)
}

func (c *BatchCommand) execute(ctx context.Context) error {
	f, err := os.Open(c.Args.File)
	if err != nil {
		return fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	rows, err := batch.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", c.Args.File, err)
	}

	sch, err := buildScheduler(ctx, c.globals, c.Provider, c.DelayMs)
	if err != nil {
		return err
	}
	session, err := sch.NewBatchSession(rows)
	if err != nil {
		return err
	}
	return finish(ctx, sch, session, c.globals, c.Out, c.out)
}
