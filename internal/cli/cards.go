package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/lingosrs/internal/domain"
	"github.com/conorfennell/lingosrs/internal/web"
)

func newDueCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List cards due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svcs.Close()

			cards, err := svcs.srs.ListDueCards(cmd.Context(), user)
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cards due.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tDUE\tFRONT")
			for _, c := range cards {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.State, c.DueDate.Format(time.RFC3339), truncate(c.FrontText, 40))
			}
			return tw.Flush()
		},
	}
	userFlag(cmd, &user)
	return cmd
}

func newReviewCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "review CARD_ID RATING",
		Short: "Record a review",
		Long:  "Record a review. RATING is Again, Hard, Good, Easy or 1-4.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := domain.ParseRating(args[1])
			if err != nil {
				return err
			}
			svcs, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svcs.Close()

			res, err := svcs.srs.SubmitReview(cmd.Context(), user, args[0], rating)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s, next due %s\n",
				res.CardID, res.State, res.NextDueDate.Format(time.RFC3339))
			return nil
		},
	}
	userFlag(cmd, &user)
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show CARD_ID",
		Short: "Show a card and its schedule",
		Long:  "Show a card and its schedule, whichever user owns it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svcs.Close()

			c, err := svcs.db.FindCard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c == nil {
				return fmt.Errorf("card %s: %w", args[0], domain.ErrNotFound)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\t%s\n", c.ID)
			fmt.Fprintf(tw, "USER\t%s\n", c.UserID)
			fmt.Fprintf(tw, "LANGUAGE\t%s\n", c.Language)
			fmt.Fprintf(tw, "FRONT\t%s\n", c.FrontText)
			fmt.Fprintf(tw, "BACK\t%s\n", c.BackText)
			fmt.Fprintf(tw, "STATE\t%s (step %d)\n", c.State, c.LearningSteps)
			fmt.Fprintf(tw, "DUE\t%s\n", c.DueDate.Format(time.RFC3339))
			fmt.Fprintf(tw, "REPS\t%d\n", c.Reps)
			fmt.Fprintf(tw, "LAPSES\t%d\n", c.Lapses)
			fmt.Fprintf(tw, "STABILITY\t%.2f\n", c.Stability)
			fmt.Fprintf(tw, "DIFFICULTY\t%.2f\n", c.Difficulty)
			return tw.Flush()
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := web.NewAuthenticator(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			tok, err := auth.IssueToken(user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
