package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"snap-to-spec/api/internal/formatter"
	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/session"
)

var errAnalysisFailed = errors.New("analysis failed")

func (a *app) newAnalyzeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "analyze IMAGE",
		Short: "Analyze a photo and print the repair guide",
		Long: `Analyze a photo of a broken item and print the repair guide.

Examples:
  # Human-readable guide
  snapfix analyze cracked-phone.jpg

  # Machine-readable output
  snapfix analyze lamp.png -o json
  snapfix analyze kettle.webp -o yaml --provider claude`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.analyze(cmd.Context(), args[0], output == "human")
			if err != nil {
				return err
			}
			if err := formatter.Display(a.opts.Out, snap, output); err != nil {
				return err
			}
			if snap.Phase != session.Success {
				return errAnalysisFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "human", "Output format (human, json, yaml, markdown)")
	return cmd
}

// analyze runs one Idle -> Loading -> Success|Failure cycle for the image at path.
func (a *app) analyze(ctx context.Context, path string, showSpinner bool) (session.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	an, err := a.analyzer()
	if err != nil {
		return session.Snapshot{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return session.Snapshot{}, err
	}
	defer f.Close()

	maxBytes := ingest.DefaultMaxBytes
	if a.opts.Config != nil {
		maxBytes = a.opts.Config.MaxImageBytes
	}
	img, err := ingest.New(maxBytes).Ingest(ctx, ingest.File{Name: filepath.Base(path), Body: f})
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}

	m := session.NewMachine("cli", an)
	if showSpinner && a.interactive() {
		s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(a.opts.Err))
		s.Suffix = " Analyzing " + filepath.Base(path) + "..."
		s.Start()
		defer s.Stop()
	}
	return m.Submit(ctx, img)
}
