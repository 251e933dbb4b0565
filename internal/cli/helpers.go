package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"promptscan-backend/internal/analytics"
	"promptscan-backend/internal/export"
	"promptscan-backend/internal/llm/providers"
	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/config"
	"promptscan-backend/internal/shared/telemetry"
)

// newProvider is swapped in tests.
var newProvider = providers.New

func loadConfig(globals *GlobalFlags) config.Config {
	if globals != nil && strings.TrimSpace(globals.Config) != "" {
		_ = os.Setenv("CONFIG_FILE", globals.Config)
	}
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	if globals != nil && globals.Verbose {
		telemetry.SetLevel("debug")
	}
	return cfg
}

func buildScheduler(ctx context.Context, globals *GlobalFlags, providerName string, delayMs int) (*sessions.Scheduler, error) {
	cfg := loadConfig(globals)
	if strings.TrimSpace(providerName) != "" {
		cfg.LLMProvider = config.NormalizeProvider(providerName)
	}

	provider, opts, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sch := sessions.NewScheduler(provider, opts)
	sch.Delay = cfg.PromptDelay
	if delayMs >= 0 {
		sch.Delay = time.Duration(delayMs) * time.Millisecond
	}
	return sch, nil
}

// progress prints one line per finished item.
func progress(out io.Writer, total int) sessions.EmitFunc {
	return func(ev sessions.Event) {
		if ev.Type != sessions.EventItemUpdated || ev.Item == nil || !ev.Item.Status.Terminal() {
			return
		}
		item := ev.Item
		if item.Status == sessions.ItemError {
			fmt.Fprintf(out, "[%d/%d] error: %s\n", ev.Index+1, total, item.Error)
			return
		}
		counts := make([]string, 0, len(item.Matches))
		for _, m := range item.Matches {
			counts = append(counts, fmt.Sprintf("%s=%d", m.Keyword, m.Count))
		}
		fmt.Fprintf(out, "[%d/%d] completed %d chars %s\n", ev.Index+1, total, len([]rune(item.Response)), strings.Join(counts, " "))
	}
}

// finish drives session, then writes the export document and summary.
func finish(ctx context.Context, sch *sessions.Scheduler, session sessions.Session, globals *GlobalFlags, outPath string, out io.Writer) error {
	jsonOut := globals != nil && globals.JSON
	var emit sessions.EmitFunc
	if !jsonOut {
		emit = progress(out, len(session.Items))
	}
	result := sch.Drive(ctx, session, emit)

	artifact := export.Build(result, time.Now().UTC())
	data, err := artifact.Encode()
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}

	if jsonOut {
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return err
		}
	} else {
		printSummary(out, artifact.Analytics, result)
		if outPath != "" {
			fmt.Fprintf(out, "export written to %s\n", outPath)
		}
	}
	if result.Status == sessions.SessionError {
		return fmt.Errorf("session aborted: %s", result.Error)
	}
	return nil
}

func printSummary(out io.Writer, data analytics.Data, session sessions.Session) {
	fmt.Fprintln(out, "Summary")
	fmt.Fprintln(out, "=======")
	fmt.Fprintf(out, "Session:        %s (%s)\n", session.ID, session.Status)
	fmt.Fprintf(out, "Prompts:        %d\n", data.TotalPrompts)
	fmt.Fprintf(out, "Responses:      %d\n", data.TotalResponses)
	fmt.Fprintf(out, "Errors:         %d\n", data.TotalErrors)
	fmt.Fprintf(out, "Matches:        %d\n", data.TotalKeywordMatches)
	fmt.Fprintf(out, "Avg length:     %d\n", data.AverageResponseLength)
	fmt.Fprintf(out, "Processing ms:  %d\n", data.ProcessingTimeMs)

	keys := make([]string, 0, len(data.KeywordFrequency))
	for k := range data.KeywordFrequency {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %d\n", k, data.KeywordFrequency[k])
	}
}
