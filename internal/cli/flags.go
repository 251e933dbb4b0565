package cli

import "io"

// GlobalFlags are accepted by every subcommand.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to a yaml or toml config file" default:""`
	JSON    bool   `long:"json" description:"Print the export document as JSON"`
	Verbose bool   `short:"v" long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// RunCommand sends prompts one at a time and reports keyword matches.
type RunCommand struct {
	Prompts  []string `short:"p" long:"prompt" description:"Prompt to send (repeatable, at most 10)" required:"true"`
	Keywords []string `short:"k" long:"keyword" description:"Keyword to track (repeatable)" required:"true"`
	Provider string   `long:"provider" description:"gemini, openai, anthropic or placeholder"`
	DelayMs  int      `long:"delay-ms" description:"Pause between prompts in milliseconds (negative uses config)" default:"-1"`
	Out      string   `short:"o" long:"out" description:"Write the export document to this file"`

	globals *GlobalFlags
	out     io.Writer
}

// BatchCommand runs every row of a prompt,keywords CSV file.
type BatchCommand struct {
	Provider string `long:"provider" description:"gemini, openai, anthropic or placeholder"`
	DelayMs  int    `long:"delay-ms" description:"Pause between prompts in milliseconds (negative uses config)" default:"-1"`
	Out      string `short:"o" long:"out" description:"Write the export document to this file"`
	Args     struct {
		File string `positional-arg-name:"FILE" description:"CSV file with prompt and keywords columns"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	out     io.Writer
}

// TemplateCommand writes the example batch CSV.
type TemplateCommand struct {
	Out string `short:"o" long:"out" description:"Write the template to this file instead of stdout"`

	out io.Writer
}
