package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"post-purge/internal/models/ports"
)

// Factory создает сервис удаления; второй результат освобождает ресурсы
type Factory func(ctx context.Context) (ports.PurgeUseCase, func(), error)

type session struct {
	factory          Factory
	isTTY            func() bool
	progressInterval time.Duration
}

// open создает сервис, выполняет fn и освобождает ресурсы
func (s *session) open(cmd *cobra.Command, fn func(ctx context.Context, uc ports.PurgeUseCase) error) error {
	ctx := cmd.Context()

	uc, closer, err := s.factory(ctx)
	if err != nil {
		return err
	}
	defer closer()

	return fn(ctx, uc)
}

// NewRootCmd создает корневую команду CLI
func NewRootCmd(factory Factory) *cobra.Command {
	return NewRootCmdWithTTY(factory, func() bool { return isTerminal(os.Stdin) }, 2*time.Second)
}

// NewRootCmdWithTTY создает корневую команду с заданной проверкой терминала
func NewRootCmdWithTTY(factory Factory, isTTY func() bool, progressInterval time.Duration) *cobra.Command {
	s := &session{
		factory:          factory,
		isTTY:            isTTY,
		progressInterval: progressInterval,
	}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete your posts in rate-limit friendly batches",
		Long: `purge lists your recent posts and deletes the ones you pick.

Deletion runs in batches with a pause between them and waits out
rate limits instead of failing, so a long run can take hours.`,
		Example: `  # Show the 50 most recent posts
  purge posts --limit 50

  # Delete two posts by id
  purge delete 1790000000000000001 1790000000000000002

  # Pick posts interactively
  purge select --limit 100`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newPostsCmd(s), newDeleteCmd(s), newSelectCmd(s))

	return cmd
}
