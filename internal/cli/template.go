package cli

import (
	"fmt"
	"os"

	"promptscan-backend/internal/batch"
)

// Execute implements the go-flags Commander interface for TemplateCommand.
func (c *TemplateCommand) Execute(args []string) error {
	if c.Out != "" {
		if err := os.WriteFile(c.Out, batch.Template(), 0o644); err != nil {
			return fmt.Errorf("write template: %w", err)
		}
		return nil
	}
	_, err := c.out.Write(batch.Template())
	return err
}
