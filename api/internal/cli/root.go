// Package cli is the snapfix command line: analyze a photo from disk and print or export the guide.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"snap-to-spec/api/internal/config"
	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/guide/engines"
	"snap-to-spec/api/internal/session"
)

// Options wires the commands. Zero values are filled from the environment.
type Options struct {
	Config   *config.Config
	Analyzer session.Analyzer
	Out      io.Writer
	Err      io.Writer
	// Interactive enables the spinner and colours; nil means "stdout is a terminal".
	Interactive *bool
}

type app struct {
	opts     Options
	provider string
	model    string
}

func NewRootCmd(version string, opts Options) *cobra.Command {
	a := &app{opts: opts}
	if a.opts.Out == nil {
		a.opts.Out = os.Stdout
	}
	if a.opts.Err == nil {
		a.opts.Err = os.Stderr
	}

	root := &cobra.Command{
		Use:   "snapfix",
		Short: "Photo of a broken item in, repair guide out",
		Long: `snapfix sends a photo of a broken household item to a vision model and prints
a repair guide: what the item is, what is wrong, difficulty, tools, time, safety
warnings and a step-by-step checklist.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !a.interactive() {
				color.NoColor = true
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.opts.Out)
	root.SetErr(a.opts.Err)

	root.PersistentFlags().StringVar(&a.provider, "provider", "", "LLM provider (gemini, vertex, gpt, claude); default from LLM_PROVIDER")
	root.PersistentFlags().StringVar(&a.model, "model", "", "Model override for the provider")

	root.AddCommand(
		a.newAnalyzeCmd(),
		a.newExportCmd(),
		newVersionCmd(version),
	)
	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "snapfix version %s\n", version)
		},
	}
}

func (a *app) interactive() bool {
	if a.opts.Interactive != nil {
		return *a.opts.Interactive
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func (a *app) config() *config.Config {
	if a.opts.Config == nil {
		a.opts.Config = config.Load()
	}
	return a.opts.Config
}

// analyzer returns the injected analyzer or one built from config and flags.
func (a *app) analyzer() (session.Analyzer, error) {
	if a.opts.Analyzer != nil {
		return a.opts.Analyzer, nil
	}
	cfg := a.config()
	set := engines.New(cfg)
	eng, err := set.GetEngine(a.provider)
	if err != nil {
		return nil, err
	}
	if m := strings.TrimSpace(a.model); m != "" {
		if ms, ok := eng.(guide.ModelSwitcher); ok {
			eng = ms.WithModel(m)
		}
	}
	return guide.NewClient(guide.NewManager(eng), cfg.AnalyzeTimeout), nil
}
