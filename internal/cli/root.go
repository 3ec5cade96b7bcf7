// Package cli implements the lingosrs command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conorfennell/lingosrs/internal/config"
	"github.com/conorfennell/lingosrs/internal/fsrs"
	"github.com/conorfennell/lingosrs/internal/logging"
	"github.com/conorfennell/lingosrs/internal/srs"
	"github.com/conorfennell/lingosrs/internal/storage"
	decksync "github.com/conorfennell/lingosrs/internal/sync"
)

// app is the state shared by every command once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd creates the root command for lingosrs.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "lingosrs",
		Short: "Spaced repetition flashcards for language learning",
		Long: `lingosrs schedules flashcard reviews with FSRS.

It serves the review API over HTTP and imports decks from local
directories or git repositories.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newSourceCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newDueCmd(a))
	root.AddCommand(newReviewCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newTokenCmd(a))

	return root
}

// services holds the wired domain services for one command invocation.
type services struct {
	db     *storage.DB
	srs    *srs.Service
	syncer *decksync.Syncer
}

func (a *app) open(ctx context.Context, opts ...srs.Option) (*services, error) {
	db, err := storage.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	sched, err := fsrs.NewScheduler(a.cfg.Scheduler, nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	svc := srs.NewService(db, sched, append([]srs.Option{srs.WithLogger(a.logger)}, opts...)...)
	return &services{
		db:     db,
		srs:    svc,
		syncer: decksync.NewSyncer(db, svc, a.cfg.Sync.ReposDir, a.logger),
	}, nil
}

func (s *services) Close() {
	s.db.Close()
}

func userFlag(cmd *cobra.Command, user *string) {
	cmd.Flags().StringVarP(user, "user", "u", "", "user id the command acts for (required)")
	cmd.MarkFlagRequired("user")
}

func printReports(cmd *cobra.Command, reports []decksync.Report) {
	out := cmd.OutOrStdout()
	for _, r := range reports {
		fmt.Fprintf(out, "%s %s: parsed %d, created %d, deleted %d, errors %d\n",
			r.SourceID, r.Path, r.Parsed, r.Created, r.Deleted, len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
}
