package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/lingosrs/internal/domain"
	decksync "github.com/conorfennell/lingosrs/internal/sync"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		user string
		lang string
	)
	cmd := &cobra.Command{
		Use:   "import DIR",
		Short: "Import the decks in a directory",
		Long: `Register DIR as a deck source, if it is not one already, and sync it.
Files ending in .md and .xlsx are read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svcs, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer svcs.Close()

			src, err := svcs.syncer.AddSource(ctx, user, args[0], domain.Language(lang))
			if errors.Is(err, domain.ErrConflict) {
				src, err = findSource(cmd, svcs, user, args[0])
			}
			if err != nil {
				return err
			}

			printReports(cmd, []decksync.Report{svcs.syncer.SyncSource(ctx, *src)})
			return nil
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVarP(&lang, "language", "l", string(domain.English), "deck language: eng, jpn or chi_sim")
	return cmd
}

func findSource(cmd *cobra.Command, svcs *services, user, path string) (*domain.Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	sources, err := svcs.syncer.ListSources(cmd.Context(), user)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		if sources[i].Path == abs || sources[i].Path == path {
			return &sources[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func newSourceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage deck sources",
	}
	cmd.AddCommand(newSourceAddCmd(a))
	cmd.AddCommand(newSourceListCmd(a))
	cmd.AddCommand(newSourceRemoveCmd(a))
	return cmd
}

func newSourceAddCmd(a *app) *cobra.Command {
	var (
		user string
		lang string
	)
	cmd := &cobra.Command{
		Use:   "add PATH_OR_GIT_URL",
		Short: "Add a local directory or git repository of decks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svcs.Close()

			src, err := svcs.syncer.AddSource(cmd.Context(), user, args[0], domain.Language(lang))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %s (%s)\n", src.Type, src.Path, src.ID)
			return nil
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVarP(&lang, "language", "l", string(domain.English), "deck language: eng, jpn or chi_sim")
	return cmd
}

func newSourceListCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deck sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svcs.Close()

			sources, err := svcs.syncer.ListSources(cmd.Context(), user)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tLANGUAGE\tLAST SCANNED\tPATH")
			for _, s := range sources {
				scanned := "never"
				if s.LastScanned != nil {
					scanned = s.LastScanned.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Type, s.Language, scanned, s.Path)
			}
			return tw.Flush()
		},
	}
	userFlag(cmd, &user)
	return cmd
}

func newSourceRemoveCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "remove SOURCE_ID",
		Short: "Remove a deck source, keeping its cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svcs.Close()

			if err := svcs.syncer.RemoveSource(cmd.Context(), user, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed source %s\n", args[0])
			return nil
		},
	}
	userFlag(cmd, &user)
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync deck sources",
		Long:  "Sync every deck source, or only those of --user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svcs.Close()

			var reports []decksync.Report
			if user != "" {
				reports, err = svcs.syncer.SyncUser(cmd.Context(), user)
			} else {
				reports, err = svcs.syncer.SyncAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			printReports(cmd, reports)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "only sync this user's sources")
	return cmd
}
