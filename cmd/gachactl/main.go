package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	cl "gachabot/internal/cli"
	"gachabot/internal/config"

	"github.com/spf13/cobra"
)

// target is where commands are sent: flags override env, env overrides the
// saved session.
type target struct {
	apiBase    string
	adminToken string
}

func main() {
	cfg := config.LoadCLIFromEnv()
	t := &target{apiBase: cfg.APIBaseURL, adminToken: cfg.AdminToken}

	root := &cobra.Command{
		Use:          "gachactl",
		Short:        "Operator CLI for the gachabot API",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			sess, err := cl.LoadSession()
			if err != nil {
				return
			}
			if !cmd.Flags().Changed("api") && os.Getenv("GACHACTL_API_BASE_URL") == "" && sess.APIBaseURL != "" {
				t.apiBase = sess.APIBaseURL
			}
			if t.adminToken == "" {
				t.adminToken = sess.AdminToken
			}
		},
	}
	root.PersistentFlags().StringVar(&t.apiBase, "api", t.apiBase, "API base URL")

	root.AddCommand(
		newLoginCmd(t),
		newLogoutCmd(),
		newHealthCmd(t),
		newSearchCmd(t),
		newCharacterCmd(t),
		newBalanceCmd(t),
		newWaifusCmd(t),
		newAdminCmd(t),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(t *target) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(t.apiBase), "/"), t.adminToken)
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newLoginCmd(t *target) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save the API address and admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := promptOptional(fmt.Sprintf("API base URL [%s]", t.apiBase))
			if err != nil {
				return err
			}
			if base == "" {
				base = t.apiBase
			}
			token, err := promptRequired("Admin token")
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := cl.NewClient(base, token).Health(ctx); err != nil {
				printWarn(fmt.Sprintf("API not reachable yet: %v", err))
			}
			if err := cl.SaveSession(cl.Session{APIBaseURL: base, AdminToken: token}); err != nil {
				return err
			}
			printSuccess("Session saved.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newHealthCmd(t *target) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := newClient(t).Health(ctx); err != nil {
				return err
			}
			printSuccess("API is healthy.")
			return nil
		},
	}
}

func newSearchCmd(t *target) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Search the character catalogue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			chars, err := newClient(t).SearchCharacters(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			renderCharacters(chars)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "maximum results")
	return cmd
}

func newCharacterCmd(t *target) *cobra.Command {
	return &cobra.Command{
		Use:     "character <id>",
		Aliases: []string{"char"},
		Short:   "Show one character with its series and images",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("character id must be numeric: %w", err)
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			ch, err := newClient(t).Character(ctx, id)
			if err != nil {
				return err
			}
			renderCharacter(ch)
			return nil
		},
	}
}

func newBalanceCmd(t *target) *cobra.Command {
	return &cobra.Command{
		Use:     "balance <user id>",
		Aliases: []string{"bal"},
		Short:   "Show a player's balance and locks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			bal, err := newClient(t).Balance(ctx, args[0])
			if err != nil {
				return err
			}
			renderBalance(bal)
			return nil
		},
	}
}

func newWaifusCmd(t *target) *cobra.Command {
	var (
		names       []string
		rarities    []int
		series      []int64
		seriesNames []string
		favOnly     bool
	)
	cmd := &cobra.Command{
		Use:     "waifus <user id>",
		Aliases: []string{"list"},
		Short:   "List a player's collection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			for _, n := range names {
				q.Add("name", n)
			}
			for _, r := range rarities {
				q.Add("rarity", strconv.Itoa(r))
			}
			for _, s := range series {
				q.Add("series", strconv.FormatInt(s, 10))
			}
			for _, s := range seriesNames {
				q.Add("seriesname", s)
			}
			if favOnly {
				q.Set("fav", "true")
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			items, err := newClient(t).Waifus(ctx, args[0], q)
			if err != nil {
				return err
			}
			renderItems(args[0], items)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&names, "name", "n", nil, "character name")
	cmd.Flags().IntSliceVarP(&rarities, "rarity", "r", nil, "rarity in stars (1-6)")
	cmd.Flags().Int64SliceVarP(&series, "series", "s", nil, "series id")
	cmd.Flags().StringSliceVar(&seriesNames, "series-name", nil, "series name")
	cmd.Flags().BoolVarP(&favOnly, "fav", "f", false, "favorites only")
	return cmd
}

func newAdminCmd(t *target) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Operator actions that need the admin token",
	}
	admin.AddCommand(
		&cobra.Command{
			Use:   "set-currency <user id> <amount>",
			Short: "Overwrite a player's balance",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || amount < 0 {
					return fmt.Errorf("amount must be a non-negative whole number")
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				bal, err := newClient(t).SetCurrency(ctx, args[0], amount)
				if err != nil {
					return err
				}
				renderBalance(bal)
				return nil
			},
		},
		&cobra.Command{
			Use:   "assign-channel <guild id> <channel id>",
			Short: "Set the drop channel of a guild",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				if err := newClient(t).AssignChannel(ctx, args[0], args[1]); err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Guild %s now drops in channel %s.", args[0], args[1]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset-locks",
			Short: "Clear every trading and removal lock",
			RunE: func(cmd *cobra.Command, args []string) error {
				ok, err := promptConfirm("Reset all locks? Only do this while the bot is stopped")
				if err != nil {
					return err
				}
				if !ok {
					printInfo("Aborted.")
					return nil
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				if err := newClient(t).ResetLocks(ctx); err != nil {
					return err
				}
				printSuccess("All locks cleared.")
				return nil
			},
		},
	)
	return admin
}
