package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/memoir/internal/engine"
	"github.com/felixgeelhaar/memoir/internal/interview"
	"github.com/felixgeelhaar/memoir/internal/memoir"
	"github.com/felixgeelhaar/memoir/internal/store"
)

var sessionMatch string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved interviews",
	Long: `List saved interviews, newest first. --match filters by session id
or interviewee name with a glob such as "li*" or "2f3c*".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.store.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		list, err = filterSessions(list, sessionMatch)
		if err != nil {
			return err
		}
		printSessions(cmd.OutOrStdout(), list)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Summarize a saved interview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			// The summary can still be written locally.
			if a, err = openStore(); err != nil {
				return err
			}
			a.writer = memoir.New(a.cfg, nil)
		}
		defer a.Close()

		ctx := cmd.Context()
		rec, err := a.store.LoadSession(ctx, args[0])
		if err != nil {
			return err
		}
		s, err := rec.Session()
		if err != nil {
			return err
		}
		arts, err := a.store.ListArtifacts(ctx, s.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printSummary(out, engine.Summarize(s, a.cfg.Mandatory()), arts)

		recap, err := a.writer.Summary(ctx, s.Messages, s.Profile)
		if err != nil {
			a.obs.Log().Warn().Err(err).Msg("summary fell back to the local template")
		}
		fmt.Fprintf(out, "\nSummary:\n%s\n", recap)
		return nil
	},
}

// filterSessions keeps the sessions whose id or lower-cased name matches
// pattern. An empty pattern keeps everything.
func filterSessions(list []store.Summary, pattern string) ([]store.Summary, error) {
	if pattern == "" {
		return list, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern: %s", pattern)
	}
	var out []store.Summary
	for _, s := range list {
		idMatch, _ := doublestar.Match(pattern, s.ID)
		nameMatch, _ := doublestar.Match(strings.ToLower(pattern), strings.ToLower(s.Name))
		if idMatch || nameMatch {
			out = append(out, s)
		}
	}
	return out, nil
}

func printSessions(w io.Writer, list []store.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-18s  %-16s  %5s  %s\n", "ID", "STAGE", "NAME", "MSGS", "UPDATED")
	for _, s := range list {
		name := s.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%-36s  %-18s  %-16s  %5d  %s\n", s.ID, s.Stage, name, s.Messages, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}

func printSummary(w io.Writer, sum engine.Summary, arts []*store.Artifact) {
	fmt.Fprintf(w, "Session:   %s\n", sum.ID)
	fmt.Fprintf(w, "Stage:     %s\n", sum.Stage)
	fmt.Fprintf(w, "Started:   %s\n", sum.StartedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Duration:  %s\n", sum.Duration.Round(time.Second))
	fmt.Fprintf(w, "Exchanges: %d (%d messages, %d follow-ups)\n", sum.Exchanges, sum.Messages, sum.FollowUps)

	fmt.Fprintln(w, "Profile:")
	for _, f := range interview.Fields() {
		if v, ok := sum.Profile.Get(f); ok {
			fmt.Fprintf(w, "  %-11s %s\n", f+":", v)
		}
	}
	if len(sum.Missing) > 0 {
		missing := make([]string, 0, len(sum.Missing))
		for _, f := range sum.Missing {
			missing = append(missing, string(f))
		}
		fmt.Fprintf(w, "  still missing: %s\n", strings.Join(missing, ", "))
	}

	if len(sum.TopicsCovered) == 0 {
		fmt.Fprintln(w, "Topics:    none yet")
	} else {
		titles := make([]string, 0, len(sum.TopicsCovered))
		for _, id := range sum.TopicsCovered {
			titles = append(titles, id.Title())
		}
		fmt.Fprintf(w, "Topics:    %s\n", strings.Join(titles, ", "))
	}

	for _, a := range arts {
		fmt.Fprintf(w, "Memoir:    %s (%s, %s)\n", a.ID, a.Style, a.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
}

func init() {
	RootCmd.AddCommand(sessionsCmd)
	RootCmd.AddCommand(showCmd)
	sessionsCmd.Flags().StringVar(&sessionMatch, "match", "", "Glob over session id or name")
}
