package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anthonydavila469-creator/billdock/internal/cli"
	"github.com/anthonydavila469-creator/billdock/internal/model"
)

func vendorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "Manage vendor payment-domain rules",
		Long: `View and edit the allow-list of payment domains per vendor.
Payment links that match neither the sender's domain nor a vendor rule
are dropped from extractions.`,
	}

	cmd.AddCommand(vendorsListCmd())
	cmd.AddCommand(vendorsSetCmd())

	return cmd
}

func vendorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all vendor rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.GetAllVendorRules(ctx)
			if err != nil {
				return err
			}

			if len(rules) == 0 {
				fmt.Println(cli.FormatWarning("No vendor rules yet. Add one with 'billdock vendors set <vendor> <domain>...'."))
				return nil
			}

			fmt.Println(cli.TableHeaderStyle.Render("Vendor") + "  " + cli.TableHeaderStyle.Render("Allowed domains"))
			for _, rule := range rules {
				fmt.Printf("%s  %s\n",
					cli.TableCellStyle.Render(rule.VendorKey),
					strings.Join(rule.AllowedDomains, ", "))
			}
			return nil
		},
	}
}

func vendorsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <vendor> <domain> [domain...]",
		Short: "Set the allowed payment domains for a vendor",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule := &model.VendorRule{
				VendorKey:      model.VendorKeyFromName(args[0]),
				AllowedDomains: args[1:],
			}
			if err := store.SaveVendorRule(ctx, rule); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved rule for %q: %s",
				rule.VendorKey, strings.Join(rule.AllowedDomains, ", "))))
			return nil
		},
	}
}
