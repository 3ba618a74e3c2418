package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anthonydavila469-creator/billdock/internal/cli"
	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/service"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work through extractions that need a human decision",
	}

	cmd.AddCommand(reviewListCmd())
	cmd.AddCommand(reviewConfirmCmd())
	cmd.AddCommand(reviewRejectCmd())

	return cmd
}

func reviewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the review queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("sync.user")
			if userID == "" {
				return fmt.Errorf("%w: sync.user is required", common.ErrMissingConfig)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			queue, err := store.GetReviewQueue(ctx, userID)
			if err != nil {
				return err
			}

			if len(queue) == 0 {
				fmt.Println(cli.FormatSuccess("Review queue is empty."))
				return nil
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("%d extraction(s) to review", len(queue))))
			for _, extraction := range queue {
				printExtraction(extraction)
			}
			return nil
		},
	}
}

func reviewConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <extraction-id>",
		Short: "Confirm an extraction and create the bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			bill, err := reviewEngine(store).ConfirmExtraction(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created bill %s for %s.", bill.ID, bill.VendorName)))
			return nil
		},
	}
}

func reviewRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <extraction-id>",
		Short: "Reject an extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := reviewEngine(store).RejectExtraction(ctx, args[0]); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("Extraction rejected."))
			return nil
		},
	}
}

// reviewEngine builds an engine wired for review mutations only; confirm
// and reject never touch the mailbox or the classifier.
func reviewEngine(store service.Storage) reviewActions {
	return buildSyncEngine(store, nil, nil, slog.Default(), nil)
}

// reviewActions is the slice of the engine the review commands use.
type reviewActions interface {
	ConfirmExtraction(ctx context.Context, id string) (*model.Bill, error)
	RejectExtraction(ctx context.Context, id string) error
}

func printExtraction(extraction model.BillExtraction) {
	amount := "unknown"
	if extraction.AmountDue != nil {
		amount = "$" + extraction.AmountDue.StringFixed(2)
	}
	due := extraction.DueDate
	if due == "" {
		due = "unknown"
	}

	line := fmt.Sprintf("%s  %s  due %s  (confidence %.0f%%)",
		cli.BoldStyle.Render(extraction.VendorName),
		amount,
		due,
		extraction.Confidence*100)

	fmt.Println(cli.RenderBox(extraction.ID, line+"\n"+cli.SubtleStyle.Render(extraction.Reason)))
}
