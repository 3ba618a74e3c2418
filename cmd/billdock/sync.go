package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/anthonydavila469-creator/billdock/internal/cli"
	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/engine"
	"github.com/anthonydavila469-creator/billdock/internal/extract"
	"github.com/anthonydavila469-creator/billdock/internal/mailbox"
	"github.com/anthonydavila469-creator/billdock/internal/paylink"
	"github.com/anthonydavila469-creator/billdock/internal/service"
	"github.com/anthonydavila469-creator/billdock/internal/validate"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch recent emails and extract bills from them",
		Long: `Fetch the user's recent inbox messages and run the extraction
pipeline over them. Obvious promotions are skipped before any AI call;
uncertain extractions land in the review queue.`,
		RunE: runSync,
	}

	cmd.Flags().Int("days", 0, "How many days back to fetch (default from config, 7)")
	cmd.Flags().String("user", "", "User id to sync (default from config)")

	_ = viper.BindPFlag("sync.lookback_days", cmd.Flags().Lookup("days"))
	_ = viper.BindPFlag("sync.user", cmd.Flags().Lookup("user"))

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	userID := viper.GetString("sync.user")
	if userID == "" {
		return fmt.Errorf("%w: sync.user is required", common.ErrMissingConfig)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	classifier, err := initClassifier(logger)
	if err != nil {
		return err
	}
	defer classifier.Close()

	fetcher, err := initFetcher(ctx, logger)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle("Syncing your inbox..."))

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("processing emails"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	eng := buildSyncEngine(store, fetcher, classifier, logger, func() { _ = bar.Add(1) })

	stats, err := eng.Sync(ctx, userID, syncSince())
	_ = bar.Finish()
	if errors.Is(err, common.ErrSyncInProgress) {
		fmt.Println(cli.FormatWarning("Another sync is already running, nothing to do."))
		return nil
	}
	if err != nil {
		return err
	}

	printSyncSummary(stats)
	return nil
}

func buildSyncEngine(store service.Storage, fetcher service.MailboxFetcher, classifier engine.Classifier, logger *slog.Logger, onItem func()) *engine.Engine {
	validatorCfg := validate.Config{
		AutoAcceptThreshold: viper.GetFloat64("routing.auto_accept_threshold"),
		RejectBelow:         viper.GetFloat64("routing.reject_below"),
		DupNameDistance:     viper.GetInt("routing.dup_name_distance"),
	}

	engineCfg := engine.DefaultConfig()
	if window := viper.GetInt("sync.window_size"); window > 0 {
		engineCfg.WindowSize = window
	}
	if delay := viper.GetDuration("sync.window_delay"); delay > 0 {
		engineCfg.WindowDelay = delay
	}
	if viper.IsSet("sync.pass_unknown_senders") {
		engineCfg.PassUnknownSenders = viper.GetBool("sync.pass_unknown_senders")
	}
	engineCfg.OnItemDone = onItem

	requireHTTPS := true
	if viper.IsSet("links.require_https") {
		requireHTTPS = viper.GetBool("links.require_https")
	}

	return engine.New(
		store,
		fetcher,
		classifier,
		extract.NewExtractor(extract.DefaultTables()),
		validate.New(validatorCfg, logger),
		paylink.NewValidator(requireHTTPS),
		engineCfg,
		logger,
	)
}

// initFetcher builds the Gmail fetcher from the stored OAuth credentials.
func initFetcher(ctx context.Context, logger *slog.Logger) (service.MailboxFetcher, error) {
	clientID := viper.GetString("gmail.client_id")
	clientSecret := viper.GetString("gmail.client_secret")
	refreshToken := viper.GetString("gmail.refresh_token")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("%w: gmail.client_id, gmail.client_secret and gmail.refresh_token are required", common.ErrMissingConfig)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	return mailbox.NewGmailFetcher(ctx, tokenSource, logger)
}

func printSyncSummary(stats *service.SyncLog) {
	fmt.Println(cli.RenderBox("Sync summary", fmt.Sprintf(
		"Fetched:       %d\nSkipped:       %d\nProcessed:     %d\nAuto-accepted: %d\nNeeds review:  %d\nRejected:      %d\nDuplicates:    %d\nErrors:        %d",
		stats.Fetched,
		stats.Skipped,
		stats.Processed,
		stats.AutoAccepted,
		stats.NeedsReview,
		stats.Rejected,
		stats.Duplicates,
		stats.Errors,
	)))

	if stats.NeedsReview > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d extraction(s) waiting in the review queue. Run 'billdock review list'.", stats.NeedsReview)))
	}
	if stats.Errors > 0 {
		fmt.Println(cli.FormatError(fmt.Sprintf("%d email(s) failed; see the log for details.", stats.Errors)))
	}
}
