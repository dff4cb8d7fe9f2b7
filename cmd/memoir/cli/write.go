package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/memoir"
)

var (
	writeStyle  string
	writeOut    string
	writeRender bool
)

var writeCmd = &cobra.Command{
	Use:   "write [session-id]",
	Short: "Write the memoir for a session",
	Long: `Write the memoir for a saved session and keep a copy with the session.
Styles: factual (default), literary, letter. --out must be a relative
path matching the configured export globs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		style, err := interview.ParseStyle(writeStyle)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if writeOut != "" {
			if v := a.guard.CheckExport(writeOut); v != nil {
				return v
			}
		}

		ctx := cmd.Context()
		s, err := a.engine.Load(ctx, args[0])
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		progress := func(done, total int) {
			if ciMode {
				return
			}
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("Writing memoir"),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(done)
		}

		var doc *interview.Document
		if s.Closed() {
			// An ended interview keeps its stage; only the text is produced.
			doc, err = a.writer.WriteWithProgress(ctx, s.ID, s.Messages, s.Profile, style, progress)
		} else {
			doc, err = a.engine.RequestMemoirWithProgress(ctx, s, style, progress)
		}
		if doc == nil {
			return err
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, warnColor("warning: "+err.Error()))
		}

		art, md, err := exportMemoir(ctx, a.store, doc)
		if err != nil {
			return err
		}
		a.obs.Log().Info().Str("session", s.ID).Str("artifact", art.ID).Str("digest", art.Digest).Msg("memoir saved")

		out := cmd.OutOrStdout()
		switch {
		case writeOut != "":
			if err := os.WriteFile(writeOut, []byte(md), 0644); err != nil { // #nosec G306
				return fmt.Errorf("failed to write %s: %w", writeOut, err)
			}
			fmt.Fprintf(out, "Memoir written to %s (%d sections)\n", writeOut, len(doc.Sections))
		case writeRender:
			rendered, err := render(md)
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
		default:
			fmt.Fprint(out, md)
		}
		return nil
	},
}

var artifactCmd = &cobra.Command{
	Use:   "artifact [artifact-id]",
	Short: "Print a memoir saved earlier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore()
		if err != nil {
			return err
		}
		defer a.Close()

		art, content, err := a.store.GetArtifact(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if memoir.Digest(string(content)) != art.Digest {
			fmt.Fprintln(os.Stderr, warnColor("warning: memoir content does not match its digest"))
		}
		if writeRender {
			rendered, err := render(string(content))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), string(content))
		return nil
	},
}

func render(md string) (string, error) {
	opt := glamour.WithAutoStyle()
	if ciMode {
		opt = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(80))
	if err != nil {
		return "", fmt.Errorf("failed to start renderer: %w", err)
	}
	return r.Render(md)
}

func init() {
	RootCmd.AddCommand(writeCmd)
	RootCmd.AddCommand(artifactCmd)
	writeCmd.Flags().StringVarP(&writeStyle, "style", "s", "factual", "Memoir style: factual, literary or letter")
	writeCmd.Flags().StringVarP(&writeOut, "out", "o", "", "Also write the Markdown to this file")
	writeCmd.Flags().BoolVar(&writeRender, "render", false, "Render the Markdown for the terminal")
	artifactCmd.Flags().BoolVar(&writeRender, "render", false, "Render the Markdown for the terminal")
}
