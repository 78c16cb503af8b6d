package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"github.com/smallbiznis/labdesk/internal/input"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	"github.com/spf13/cobra"
)

var exemptionsCmd = &cobra.Command{
	Use:   "exemptions",
	Short: "Manage users whose baskets never go inactive",
}

var exemptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exemptions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc services) error {
			items, err := svc.Exemptions.List(ctx)
			if err != nil {
				return err
			}
			for _, item := range items {
				if item.Reason == "" {
					fmt.Fprintln(cmd.OutOrStdout(), item.User)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", item.User, item.Reason)
			}
			return nil
		})
	},
}

var exemptionReason string

var exemptionsAddCmd = &cobra.Command{
	Use:   "add <full name>",
	Short: "Exempt a user",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc services) error {
			item, err := svc.Exemptions.Add(ctx, exemptiondomain.AddRequest{
				User:   strings.Join(args, " "),
				Reason: exemptionReason,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exempted %s\n", item.User)
			return nil
		})
	},
}

var exemptionsRemoveCmd = &cobra.Command{
	Use:   "remove <full name>",
	Short: "Remove an exemption",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc services) error {
			user := strings.Join(args, " ")
			if err := svc.Exemptions.Remove(ctx, user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", user)
			return nil
		})
	},
}

var (
	badgeRows string
	badgeEIDs []string
	badgeOut  string
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Render a badge sheet PDF from registration rows",
	Long: `Render the badge sheet for registration rows or EIDs.

  labctl badges --rows 2-4 -o badges.pdf
  labctl badges --eid jd123 --eid bo456 -o badges.pdf`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(badgeRows) == "" && len(badgeEIDs) == 0 {
			return errors.New("--rows or --eid required")
		}
		return withServices(cmd, func(ctx context.Context, svc services) error {
			var (
				rows []int
				err  error
			)
			if strings.TrimSpace(badgeRows) != "" {
				rows, err = svc.Badges.ParseRows(ctx, badgeRows)
			} else {
				rows, err = svc.Badges.RowsForEIDs(ctx, badgeEIDs)
			}
			if err != nil {
				return err
			}
			doc, err := svc.Badges.Sheet(ctx, rows)
			if err != nil {
				return err
			}
			if err := os.WriteFile(badgeOut, doc, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d badges to %s\n", len(rows), badgeOut)
			return nil
		})
	},
}

var emailsCmd = &cobra.Command{
	Use:   "emails <kind> <addresses>",
	Short: "Send onboarding emails",
	Long: `Send one onboarding email per address. Addresses may be separated by
commas, semicolons or whitespace; anything that is not an address is skipped.

Kinds: training-request, building-access, basket-request, training-request-template`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, ok := registrationdomain.ParseEmailKind(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", registrationdomain.ErrUnknownEmailKind, args[0])
		}
		addresses := input.ParseEmailAddresses(strings.Join(args[1:], " "))
		return withServices(cmd, func(ctx context.Context, svc services) error {
			report, err := svc.Registration.SendOnboarding(ctx, kind, addresses)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("not sent to %s", strings.Join(report.Failed, ", "))
			}
			return nil
		})
	},
}

func init() {
	exemptionsAddCmd.Flags().StringVar(&exemptionReason, "reason", "", "Why the user is exempt")
	exemptionsCmd.AddCommand(exemptionsListCmd)
	exemptionsCmd.AddCommand(exemptionsAddCmd)
	exemptionsCmd.AddCommand(exemptionsRemoveCmd)

	badgesCmd.Flags().StringVar(&badgeRows, "rows", "", "Registration rows, e.g. 2-4,7")
	badgesCmd.Flags().StringSliceVar(&badgeEIDs, "eid", nil, "Registrant EIDs")
	badgesCmd.Flags().StringVarP(&badgeOut, "output", "o", "badges.pdf", "Output file")
}
