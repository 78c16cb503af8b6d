package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/labdesk/internal/input"
	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
	"github.com/spf13/cobra"
)

var activeUsersCmd = &cobra.Command{
	Use:   "active-users",
	Short: "Manage the Active Users sheet",
}

var activeUsersRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild Active Users from the usage logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc services) error {
			res, err := svc.ActiveUsers.Refresh(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var basketsCmd = &cobra.Command{
	Use:   "baskets",
	Short: "Manage cleanroom baskets",
}

var graceDays int

var basketsReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Update the User Active flag of every assigned basket",
	Long: `Compare every assigned basket against Active Users and exemptions.

Assignments younger than the grace period stay active. Without --grace-days the
policy value is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc services) error {
			days := svc.Policy.Get().GracePeriodDays
			if cmd.Flags().Changed("grace-days") {
				if graceDays < 0 {
					return errors.New("--grace-days must not be negative")
				}
				days = graceDays
			}
			changes, err := svc.Baskets.Reconcile(ctx, days)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no status changes")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), changes)
		})
	},
}

var returnRows string

var basketsReturnCmd = &cobra.Command{
	Use:   "return [basket-id...]",
	Short: "Return baskets to the free pool",
	Long: `Return baskets by ID or by Basket Index row.

  labctl baskets return S001 N014
  labctl baskets return --rows 2-5,9`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows []int
		switch {
		case strings.TrimSpace(returnRows) != "":
			if len(args) > 0 {
				return errors.New("pass basket IDs or --rows, not both")
			}
			parsed, err := input.ParseRowNumbers(returnRows, input.Bounds{Min: sheetdomain.HeaderRow + 1})
			if err != nil {
				return err
			}
			rows = parsed
		case len(args) == 0:
			return errors.New("basket IDs or --rows required")
		}

		return withServices(cmd, func(ctx context.Context, svc services) error {
			if rows != nil {
				res, err := svc.Baskets.ReturnRows(ctx, rows)
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			}
			ids := make([]string, 0, len(args))
			for _, id := range args {
				ids = append(ids, strings.ToUpper(strings.TrimSpace(id)))
			}
			res, err := svc.Baskets.Return(ctx, ids...)
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
			return err
		})
	},
}

var purgeDryRun bool

var basketsPurgeWarningsCmd = &cobra.Command{
	Use:   "purge-warnings",
	Short: "Email holders of inactive baskets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc services) error {
			if purgeDryRun {
				candidates, err := svc.Baskets.PurgeCandidates(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), candidates)
			}
			report, err := svc.Baskets.SendPurgeWarnings(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

func init() {
	activeUsersCmd.AddCommand(activeUsersRefreshCmd)

	basketsReconcileCmd.Flags().IntVar(&graceDays, "grace-days", 0, "Days an assignment stays active regardless of usage")
	basketsReturnCmd.Flags().StringVar(&returnRows, "rows", "", "Basket Index rows, e.g. 2-5,9")
	basketsPurgeWarningsCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "List candidates without sending")

	basketsCmd.AddCommand(basketsReconcileCmd)
	basketsCmd.AddCommand(basketsReturnCmd)
	basketsCmd.AddCommand(basketsPurgeWarningsCmd)
}
