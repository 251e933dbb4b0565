package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.execute(ctx)
}

func (c *RunCommand) execute(ctx context.Context) error {
	sch, err := buildScheduler(ctx, c.globals, c.Provider, c.DelayMs)
	if err != nil {
		return err
	}
	session, err := sch.NewSession(c.Prompts, c.Keywords)
	if err != nil {
		return err
	}
	return finish(ctx, sch, session, c.globals, c.Out, c.out)
}
