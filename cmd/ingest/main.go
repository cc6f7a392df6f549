package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/basangdata/invoice-ingest/constants"
	"github.com/basangdata/invoice-ingest/internal/common"
	"github.com/basangdata/invoice-ingest/internal/fanout"
	"github.com/basangdata/invoice-ingest/internal/llm"
	"github.com/basangdata/invoice-ingest/internal/pipeline"
	"github.com/basangdata/invoice-ingest/internal/quota"
	repo "github.com/basangdata/invoice-ingest/internal/repository"
	"github.com/basangdata/invoice-ingest/internal/sink"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		userID   = flag.Int64("user", 0, "platform user id (required)")
		username = flag.String("username", "", "display name for first-time registration")
		text     = flag.String("text", "", "free-text message to extract instead of files")
		out      = flag.String("out", "", "write rows to a local XLSX file instead of the remote sheet")
		prompt   = flag.String("prompt", "", "save this custom extraction prompt for the user before running")
		tier     = flag.String("tier", "", "set the user's tier before running")
		columns  = flag.String("columns", "", "comma-separated sheet column selection to save for the user")
	)
	flag.Parse()
	files := flag.Args()

	if *userID == 0 {
		printError("Error: --user is required\n")
		os.Exit(1)
	}
	if *text == "" && len(files) == 0 {
		printError("Error: pass --text or at least one image/PDF file\n")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		printError("Error: loading .env: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.Migrate(ctx, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	users := repo.NewUserRepository(db, cfg.Admin.IDs, logger)
	activity := repo.NewActivityRepository(db, logger)

	user, err := users.GetOrCreate(ctx, *userID, *username)
	if err != nil {
		logger.Error("failed to load user", "user_id", *userID, "error", err)
		os.Exit(1)
	}
	if *tier != "" {
		if err := users.UpdateTier(ctx, user.ID, *tier); err != nil {
			logger.Error("failed to set tier", "tier", *tier, "error", err)
			os.Exit(1)
		}
		user, err = users.GetByTelegramID(ctx, *userID)
		if err != nil {
			logger.Error("failed to reload user", "error", err)
			os.Exit(1)
		}
	}
	if *prompt != "" {
		if err := users.UpdatePrompt(ctx, user.ID, *prompt); err != nil {
			logger.Error("failed to save prompt", "error", err)
			os.Exit(1)
		}
		user.CustomPrompt = *prompt
	}
	if *columns != "" {
		if err := users.UpdateColumns(ctx, user.ID, *columns); err != nil {
			logger.Error("failed to save column selection", "error", err)
			os.Exit(1)
		}
		user.SheetColumns = *columns
	}
	logger.Info("using account", "user_id", user.ID, "tier", user.Tier, "daily_limit", user.DailyLimit)

	units, err := buildUnits(ctx, cfg, logger, *text, files)
	if err != nil {
		logger.Error("failed to prepare units", "error", err)
		os.Exit(1)
	}

	extractor := llm.NewClient(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		ConnectTimeout: cfg.LLM.ConnectTimeout,
		ReadTimeout:    cfg.LLM.ReadTimeout,
	}, logger)

	remote := sink.NewSheetSink(cfg.Sheets.BaseURL, cfg.Sheets.Token, logger)
	var rowSink sink.RowSink = remote
	var batch *sink.BatchSink
	if *out != "" {
		batch = sink.NewBatchSink(sink.NewMemoryStore(), remote, logger)
		if err := batch.Start(user.ID); err != nil {
			logger.Error("failed to start bulk session", "error", err)
			os.Exit(1)
		}
		rowSink = batch
	}

	loc, _ := time.LoadLocation(cfg.Quota.Timezone)
	ledger := quota.NewLedger(activity, loc, logger)

	orch := pipeline.NewOrchestrator(pipeline.Config{
		DefaultSpreadsheetID: cfg.Sheets.DefaultSpreadsheetID,
	}, extractor, rowSink, activity, ledger, logger)

	outcome, err := orch.Process(ctx, user, units)
	if err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}

	if batch != nil && outcome.State == pipeline.StateDone {
		xlsx, rows, err := batch.Finalize(ctx, user.ID)
		if err != nil && !errors.Is(err, sink.ErrNoSession) {
			logger.Error("failed to finalize workbook", "error", err)
			os.Exit(1)
		}
		if err == nil {
			if err := os.WriteFile(*out, xlsx, 0644); err != nil {
				logger.Error("failed to write output file", "error", err)
				os.Exit(1)
			}
			logger.Info("workbook written", "path", *out, "rows", rows)
		}
	}

	fmt.Printf("Batch %s\n", outcome.State)
	fmt.Printf("- Units: %d (processed %d, failed %d, skipped %d)\n",
		outcome.UnitsTotal, outcome.Processed, outcome.Failed, outcome.Skipped)
	fmt.Printf("- Rows appended: %d (total %.2f)\n", outcome.Appended(), outcome.TotalAmount)
	if outcome.Partial {
		fmt.Printf("- Quota trimmed the batch; %d unit(s) left for tomorrow\n", outcome.Skipped)
	}
	if outcome.State == pipeline.StateRejected {
		fmt.Printf("- Daily quota exhausted (%d/%d used, tier %s)\n",
			outcome.Quota.UsedToday, outcome.Quota.DailyLimit, outcome.Quota.Tier)
		os.Exit(1)
	}
}

// buildUnits fans the CLI inputs out into one ordered batch. Sequence
// indexes are renumbered globally so multi-file runs keep a stable order.
func buildUnits(ctx context.Context, cfg *common.Config, logger *slog.Logger, text string, files []string) ([]fanout.Unit, error) {
	fo := fanout.New(fanout.Config{
		Pdftoppm: cfg.Fanout.Pdftoppm,
		DPI:      cfg.Fanout.DPI,
		MaxPages: cfg.Fanout.MaxPages,
	}, logger)

	var units []fanout.Unit
	add := func(art fanout.Artifact) error {
		us, err := fo.FanOut(ctx, art)
		if err != nil {
			return err
		}
		for _, u := range us {
			u.SequenceIndex = len(units)
			units = append(units, u)
		}
		return nil
	}

	if text != "" {
		if err := add(fanout.Artifact{ID: uuid.New().String(), Kind: constants.ArtifactText, Text: text}); err != nil {
			return nil, err
		}
	}
	for _, path := range files {
		if ext := filepath.Ext(path); ext != "" && !constants.ExtAllowed(ext) {
			return nil, fmt.Errorf("%s: unsupported file extension %s", path, ext)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		mime := mimetype.Detect(data).String()
		kind, ok := constants.KindForMIME(mime)
		if !ok {
			return nil, fmt.Errorf("%s: unsupported content type %s", path, mime)
		}
		if err := add(fanout.Artifact{ID: uuid.New().String(), Kind: kind, Data: data, MIME: mime}); err != nil {
			return nil, err
		}
	}
	return units, nil
}
