package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

const maxTextWidth = 60

func newPostsCmd(s *session) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List your recent posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd, func(ctx context.Context, uc ports.PurgeUseCase) error {
				posts, err := uc.ListRecentPosts(ctx, limit)
				if err != nil {
					return err
				}
				printPosts(cmd.OutOrStdout(), posts)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of posts to list (0 = service maximum)")

	return cmd
}

func newDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete posts by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd, func(ctx context.Context, uc ports.PurgeUseCase) error {
				return s.runDeletion(ctx, cmd, uc, args)
			})
		},
	}
}

func newSelectCmd(s *session) *cobra.Command {
	var (
		limit int
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "List recent posts and delete the ones you pick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd, func(ctx context.Context, uc ports.PurgeUseCase) error {
				out := cmd.OutOrStdout()

				posts, err := uc.ListRecentPosts(ctx, limit)
				if err != nil {
					return err
				}
				if len(posts) == 0 {
					fmt.Fprintln(out, "No posts found.")
					return nil
				}
				printPosts(out, posts)

				reader := bufio.NewReader(cmd.InOrStdin())
				input, err := readLine(out, reader, "\nSelect posts to delete (all, 1,3,5-8; empty to abort): ")
				if err != nil {
					return err
				}

				picked, err := ParseSelection(input, len(posts))
				if errors.Is(err, ErrAborted) {
					fmt.Fprintln(out, "Nothing selected, aborting.")
					return nil
				}
				if err != nil {
					return err
				}

				ids := make([]string, len(picked))
				for i, idx := range picked {
					ids[i] = posts[idx].ID
				}

				if !yes {
					if !s.isTTY() {
						return errors.New("stdin is not a terminal: pass --yes to delete without confirmation")
					}
					ok, err := Confirm(out, reader, fmt.Sprintf("Delete %d post(s)?", len(ids)))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, "Aborted.")
						return nil
					}
				}

				return s.runDeletion(ctx, cmd, uc, ids)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of posts to list (0 = service maximum)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// runDeletion выполняет запуск в текущей горутине и печатает прогресс в stderr
func (s *session) runDeletion(ctx context.Context, cmd *cobra.Command, uc ports.PurgeUseCase, ids []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(s.progressInterval)
		defer ticker.Stop()

		last := -1
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				snap := uc.QueryStatus().Snapshot
				if snap.Done() != last {
					last = snap.Done()
					fmt.Fprintf(errOut, "progress: %d%% (%d deleted, %d failed of %d)\n",
						snap.Percent(), snap.Deleted, snap.Failed, snap.Total)
				}
			}
		}
	}()

	report, err := uc.RunSync(ctx, ids)
	close(done)
	<-stopped

	if report == nil {
		return err
	}

	printReport(out, report)

	if err != nil {
		return err
	}
	if report.Canceled {
		return fmt.Errorf("run canceled after %d of %d posts", report.Snapshot.Done(), report.Snapshot.Total)
	}

	return nil
}

func printPosts(w io.Writer, posts []entities.Post) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tCREATED\tLIKES\tREPOSTS\tTEXT")
	for i, p := range posts {
		created := "-"
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			i+1, p.ID, created, p.Metrics.Likes, p.Metrics.Reposts, shorten(p.Text, maxTextWidth))
	}
	_ = tw.Flush()
}

func printReport(w io.Writer, report *entities.RunReport) {
	snap := report.Snapshot
	fmt.Fprintf(w, "Run %s: %d deleted, %d failed of %d\n", report.RunID, snap.Deleted, snap.Failed, snap.Total)

	for _, o := range report.Outcomes {
		if o.Status == entities.OutcomeFailed {
			fmt.Fprintf(w, "  failed %s: %s\n", o.ItemID, o.Reason)
		}
	}
}

func shorten(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-1]) + "…"
}
