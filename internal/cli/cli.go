// Package cli implements the promptscan command line.
package cli

import (
	"fmt"
	"io"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"promptscan-backend/internal/shared/telemetry"
)

type commands struct {
	Run      *RunCommand
	Batch    *BatchCommand
	Template *TemplateCommand
}

func buildParser(out io.Writer) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "promptscan"
	parser.LongDescription = "Send prompts to a text-generation provider and track keyword mentions in the responses."

	cmds := &commands{
		Run:      &RunCommand{globals: &globals, out: out},
		Batch:    &BatchCommand{globals: &globals, out: out},
		Template: &TemplateCommand{out: out},
	}

	parser.AddCommand("run", "Analyze prompts", "Send up to 10 prompts one at a time and count keyword matches in each response.", cmds.Run)
	parser.AddCommand("batch", "Analyze a CSV file", "Run every row of a CSV file with prompt and keywords columns (at most 50 rows).", cmds.Batch)
	parser.AddCommand("template", "Print the batch CSV template", "Print an example CSV file with the columns the batch command expects.", cmds.Template)

	return parser, &globals, cmds
}

// Run is the entry point using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	return runWithArgs(version, args, os.Stdout, os.Stderr)
}

// runWithArgs writes command output to out and log lines to logOut, so
// stdout stays a clean document in --json mode.
func runWithArgs(version string, args []string, out, logOut io.Writer) error {
	restore := telemetry.SetOutput(logOut)
	defer restore()

	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Fprintf(out, "promptscan %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(out)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}
	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}
