package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"snap-to-spec/api/internal/presenter"
	"snap-to-spec/api/internal/session"
)

func (a *app) newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export IMAGE",
		Short: "Analyze a photo and write a printable HTML guide",
		Long: `Analyze a photo and write the guide as a printable HTML page.
Open the page in a browser; it brings up the print dialog, where "Save as PDF" gives a PDF.

Examples:
  snapfix export cracked-phone.jpg -o phone.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.analyze(cmd.Context(), args[0], true)
			if err != nil {
				return err
			}
			if snap.Phase != session.Success || snap.Data == nil {
				msg := "no guide"
				if snap.Error != nil {
					msg = *snap.Error
				}
				color.New(color.FgRed, color.Bold).Fprintf(a.opts.Err, "❌ %s\n", msg)
				return errAnalysisFailed
			}

			v := presenter.NewView(*snap.Data, nil)
			if out == "" {
				out = presenter.ExportFileName(v.Guide.ItemName)
			}
			if err := writeExport(out, v); err != nil {
				return err
			}
			fmt.Fprintf(a.opts.Out, "✅ Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default <item>-guide.html)")
	return cmd
}

func writeExport(path string, v presenter.View) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return v.Export(f)
}
