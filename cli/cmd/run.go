package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/forge/adapter"
	adapterredis "github.com/justapithecus/forge/adapter/redis"
	"github.com/justapithecus/forge/adapter/webhook"
	"github.com/justapithecus/forge/cli/config"
	"github.com/justapithecus/forge/cli/render"
	"github.com/justapithecus/forge/cli/tui"
	"github.com/justapithecus/forge/fix"
	"github.com/justapithecus/forge/journal"
	"github.com/justapithecus/forge/log"
	"github.com/justapithecus/forge/metrics"
	"github.com/justapithecus/forge/parse"
	"github.com/justapithecus/forge/runner"
	"github.com/justapithecus/forge/store"
	"github.com/justapithecus/forge/types"
	"github.com/justapithecus/forge/workspace"
)

// Exit codes for forge run.
const (
	exitSuccess        = 0
	exitActionFailure  = 1
	exitParseFailure   = 2
	exitArchiveFailure = 3
)

// defaultChunkSize is the read granularity when replaying a transcript
// through the streaming parser. Small enough to exercise mid-tag chunk
// boundaries, large enough not to matter for throughput.
const defaultChunkSize = 4096

// Journal flush defaults when neither flags nor config set them.
const (
	defaultFlushCount    = 16
	defaultFlushInterval = time.Second
)

// RunCommand returns the run command.
// This is the only command that executes work; everything else is
// read-only.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute a streamed transcript against a workspace (the only execution entrypoint)",
		Flags: []cli.Flag{
			// Execution flags
			&cli.StringFlag{
				Name:     "message",
				Usage:    "Path to the transcript file, or '-' for stdin",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "workspace",
				Usage: "Workspace root directory (default: current directory)",
			},
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run ID (default: generated UUID)",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "Shell session ID (default: generated UUID)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to forge.yaml (default: ./forge.yaml if present)",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Transcript feed granularity in bytes",
				Value: defaultChunkSize,
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Show a live action status view while the run executes",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress report output",
			},
			// Journal flags
			&cli.StringFlag{
				Name:  "journal-path",
				Usage: "Journal output path (default: temp file)",
			},
			&cli.IntFlag{
				Name:  "journal-flush-count",
				Usage: "Flush the journal every N buffered events",
			},
			&cli.DurationFlag{
				Name:  "journal-flush-interval",
				Usage: "Flush the journal at this interval",
			},
			// Archive flags
			&cli.StringFlag{
				Name:  "archive-backend",
				Usage: "Archive backend: local or s3 (default: no archive)",
			},
			&cli.StringFlag{
				Name:  "archive-path",
				Usage: "Archive path (local: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "archive-region",
				Usage: "AWS region for the s3 backend",
			},
			&cli.StringFlag{
				Name:  "archive-endpoint",
				Usage: "Custom S3 endpoint (R2, MinIO)",
			},
			&cli.BoolFlag{
				Name:  "archive-s3-path-style",
				Usage: "Use path-style S3 addressing",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion adapter: webhook or redis (default: none)",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Adapter endpoint URL",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel (redis adapter only)",
			},
			// Output flags
			FormatFlag,
			NoColorFlag,
		},
		Action: runAction,
	}
}

// journalChoice holds resolved journal configuration.
type journalChoice struct {
	path          string
	flushCount    int
	flushInterval time.Duration
}

// archiveChoice holds resolved archive configuration.
type archiveChoice struct {
	backend     string // "local", "s3", or "" for none
	path        string
	region      string
	endpoint    string
	s3PathStyle bool
}

// adapterChoice holds resolved completion adapter configuration.
type adapterChoice struct {
	kind    string // "webhook", "redis", or "" for none
	url     string
	channel string
	headers map[string]string
	timeout time.Duration
	retries int
}

// runOutput is what forge run renders: the report plus the metrics
// snapshot collected during the run.
type runOutput struct {
	Report  *types.RunReport `json:"report" yaml:"report"`
	Metrics metrics.Snapshot `json:"metrics" yaml:"metrics"`
}

func runAction(c *cli.Context) error {
	fileCfg, err := loadFileConfig(c.String("config"))
	if err != nil {
		return err
	}

	meta := types.RunMeta{
		RunID:     firstNonEmpty(c.String("run-id"), fileCfg.RunID, uuid.NewString()),
		Workspace: firstNonEmpty(c.String("workspace"), fileCfg.Workspace, "."),
	}
	if abs, absErr := filepath.Abs(meta.Workspace); absErr == nil {
		meta.Workspace = abs
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid run identity: %w", err)
	}

	logger := log.NewLogger(&meta)

	journalCfg := resolveJournal(c, fileCfg, meta.RunID)
	archiveCfg := resolveArchive(c, fileCfg)
	adapterCfg := resolveAdapter(c, fileCfg)

	input, err := readMessage(c.String("message"))
	if err != nil {
		return err
	}

	startTime := time.Now()
	day := store.DeriveDay(startTime)

	collector := metrics.NewCollector(meta.RunID, meta.Workspace)

	sink, err := journal.NewFileSink(journalCfg.path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	jrnl, err := journal.New(sink, meta, journal.Config{
		FlushCount:    journalCfg.flushCount,
		FlushInterval: journalCfg.flushInterval,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}

	ws, err := workspace.NewLocal(meta.Workspace, logger)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}

	var watch *tui.Watch
	if c.Bool("watch") && !c.Bool("quiet") {
		watch = tui.NewWatch()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Journal writes keep flowing on the shutdown path even after the
	// run context is canceled.
	record := func(ev *types.EventEnvelope) {
		if appendErr := jrnl.Append(context.Background(), ev); appendErr != nil {
			logger.Warn("journal append failed", map[string]any{"error": appendErr.Error()})
		}
	}

	messageID := "msg-1"
	alerts := 0

	run := runner.New(runner.Options{
		Workspace: ws,
		Fixer:     fix.New(fileCfg.FixRules()),
		SessionID: firstNonEmpty(c.String("session-id"), fileCfg.SessionID),
		Logger:    logger,
		Callbacks: runner.Callbacks{
			OnStatus: func(snap types.ActionSnapshot) {
				record(&types.EventEnvelope{
					MessageID:  messageID,
					Type:       types.EventTypeActionStatus,
					ArtifactID: snap.Action.ArtifactID,
					ActionID:   snap.Action.ID,
					ActionType: snap.Action.Type,
					Status:     snap.Status,
					Payload:    statusPayload(snap),
				})
				switch snap.Status {
				case types.StatusComplete:
					if snap.Executed {
						collector.IncActionComplete()
					}
				case types.StatusFailed:
					collector.IncActionFailed()
				case types.StatusAborted:
					collector.IncActionAborted()
				}
				if watch != nil {
					watch.Send(tui.ActionUpdateMsg(snap))
				}
			},
			OnAlert: func(a types.Alert) {
				alerts++
				collector.IncAlertRaised()
				record(&types.EventEnvelope{
					MessageID: messageID,
					Type:      types.EventTypeAlert,
					Payload: map[string]any{
						"alert_type":  a.Type,
						"severity":    string(a.Severity),
						"title":       a.Title,
						"description": a.Description,
						"content":     a.Content,
						"source":      a.Source,
					},
				})
				if watch != nil {
					watch.Send(tui.AlertMsg(a))
				}
			},
			OnServiceAlert: func(sa types.ServiceAlert) {
				record(&types.EventEnvelope{
					MessageID: messageID,
					Type:      types.EventTypeAlert,
					Payload: map[string]any{
						"alert_type":  "service",
						"operation":   string(sa.Operation),
						"title":       sa.Title,
						"description": sa.Description,
						"file_path":   sa.FilePath,
					},
				})
			},
			OnDeployAlert: func(da types.DeployAlert) {
				record(&types.EventEnvelope{
					MessageID: messageID,
					Type:      types.EventTypeAlert,
					Payload: map[string]any{
						"alert_type": "deploy",
						"stage":      da.Stage,
						"exit_code":  da.ExitCode,
						"output_dir": da.OutputDir,
					},
				})
			},
		},
	})

	parser := parse.NewStreamingParser(parse.Callbacks{
		OnArtifactOpen: func(_ string, artifact types.Artifact) {
			collector.IncArtifactOpened()
			record(&types.EventEnvelope{
				MessageID:  messageID,
				Type:       types.EventTypeArtifactOpen,
				ArtifactID: artifact.ID,
				Payload:    map[string]any{"title": artifact.Title},
			})
		},
		OnArtifactClose: func(_ string, artifact types.Artifact) {
			record(&types.EventEnvelope{
				MessageID:  messageID,
				Type:       types.EventTypeArtifactClose,
				ArtifactID: artifact.ID,
			})
		},
		OnActionOpen: func(_ string, action types.Action) {
			collector.IncActionParsed()
			record(&types.EventEnvelope{
				MessageID:  messageID,
				Type:       types.EventTypeActionOpen,
				ArtifactID: action.ArtifactID,
				ActionID:   action.ID,
				ActionType: action.Type,
				Payload:    map[string]any{"file_path": action.FilePath},
			})
			run.AddAction(action)
		},
		OnActionStream: func(_ string, action types.Action) {
			record(&types.EventEnvelope{
				MessageID:  messageID,
				Type:       types.EventTypeActionStream,
				ArtifactID: action.ArtifactID,
				ActionID:   action.ID,
				ActionType: action.Type,
			})
			_ = run.RunAction(action, true)
		},
		OnActionClose: func(_ string, action types.Action) {
			record(&types.EventEnvelope{
				MessageID:  messageID,
				Type:       types.EventTypeActionClose,
				ArtifactID: action.ArtifactID,
				ActionID:   action.ID,
				ActionType: action.Type,
			})
			_ = run.RunAction(action, false)
		},
	}, parse.Options{Logger: logger})

	// SIGINT/SIGTERM abort in-flight actions; the run then settles and
	// archives whatever completed.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("signal received, aborting run", nil)
			run.AbortAll()
			cancel()
		case <-ctx.Done():
		}
	}()

	parseErr := feedParser(ctx, parser, messageID, input, c.Int("chunk-size"))
	if parseErr != nil {
		collector.IncParseError()
		logger.Error("message parse failed", map[string]any{"error": parseErr.Error()})
		run.AbortAll()
	} else {
		parser.Finalize(messageID)
	}
	run.Wait()

	report := buildReport(meta, run.Snapshots(), parseErr, time.Since(startTime), int(collector.Snapshot().ArtifactsOpened))

	record(&types.EventEnvelope{
		MessageID: messageID,
		Type:      types.EventTypeRunComplete,
		Payload:   map[string]any{"outcome": string(report.Outcome)},
	})
	if closeErr := jrnl.Close(); closeErr != nil {
		logger.Warn("journal close failed", map[string]any{"error": closeErr.Error()})
	}
	jstats := jrnl.Stats()
	collector.AbsorbJournalStats(jstats.Appended, jstats.Persisted, jstats.Errors)

	archivePath := ""
	if archiveCfg.backend != "" {
		archiveCtx, archiveCancel := context.WithTimeout(context.Background(), 60*time.Second)
		archiveErr := archiveRun(archiveCtx, archiveCfg, meta, day, journalCfg.path, report, logger)
		archiveCancel()
		if archiveErr != nil {
			collector.IncArchiveFailure()
			logger.Error("archive failed", map[string]any{"error": archiveErr.Error()})
			report.Outcome = types.OutcomeArchiveFailure
			report.Message = archiveErr.Error()
		} else {
			collector.IncArchiveSuccess()
			archivePath = fmt.Sprintf("day=%s/run_id=%s", day, meta.RunID)
		}
	}

	if adapterCfg.kind != "" {
		publishCompletion(adapterCfg, meta, day, report, archivePath, alerts, logger)
	}

	if watch != nil {
		if watchErr := watch.Done(report); watchErr != nil {
			logger.Warn("watch view failed", map[string]any{"error": watchErr.Error()})
		}
	}

	if !c.Bool("quiet") {
		r, renderErr := render.NewRenderer(c)
		if renderErr != nil {
			return renderErr
		}
		if renderErr := r.Render(&runOutput{Report: report, Metrics: collector.Snapshot()}); renderErr != nil {
			return renderErr
		}
	}

	return cli.Exit("", outcomeToExitCode(report.Outcome))
}

// loadFileConfig loads forge.yaml. An explicit --config path must exist;
// the implicit ./forge.yaml is optional.
func loadFileConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat("forge.yaml"); err == nil {
		return config.Load("forge.yaml")
	}
	return &config.Config{}, nil
}

func resolveJournal(c *cli.Context, cfg *config.Config, runID string) journalChoice {
	choice := journalChoice{
		path:          firstNonEmpty(c.String("journal-path"), cfg.Journal.Path),
		flushCount:    cfg.Journal.FlushCount,
		flushInterval: cfg.Journal.FlushInterval.Duration,
	}
	if c.IsSet("journal-flush-count") {
		choice.flushCount = c.Int("journal-flush-count")
	}
	if c.IsSet("journal-flush-interval") {
		choice.flushInterval = c.Duration("journal-flush-interval")
	}
	if choice.path == "" {
		choice.path = filepath.Join(os.TempDir(), fmt.Sprintf("forge-%s.journal", runID))
	}
	if choice.flushCount <= 0 && choice.flushInterval <= 0 {
		choice.flushCount = defaultFlushCount
		choice.flushInterval = defaultFlushInterval
	}
	return choice
}

func resolveArchive(c *cli.Context, cfg *config.Config) archiveChoice {
	choice := archiveChoice{
		backend:     firstNonEmpty(c.String("archive-backend"), cfg.Archive.Backend),
		path:        firstNonEmpty(c.String("archive-path"), cfg.Archive.Path),
		region:      firstNonEmpty(c.String("archive-region"), cfg.Archive.Region),
		endpoint:    firstNonEmpty(c.String("archive-endpoint"), cfg.Archive.Endpoint),
		s3PathStyle: cfg.Archive.S3PathStyle,
	}
	if c.IsSet("archive-s3-path-style") {
		choice.s3PathStyle = c.Bool("archive-s3-path-style")
	}
	return choice
}

func resolveAdapter(c *cli.Context, cfg *config.Config) adapterChoice {
	choice := adapterChoice{
		kind:    firstNonEmpty(c.String("adapter"), cfg.Adapter.Type),
		url:     firstNonEmpty(c.String("adapter-url"), cfg.Adapter.URL),
		channel: firstNonEmpty(c.String("adapter-channel"), cfg.Adapter.Channel),
		headers: cfg.Adapter.Headers,
		timeout: cfg.Adapter.Timeout.Duration,
	}
	if cfg.Adapter.Retries != nil {
		choice.retries = *cfg.Adapter.Retries
	} else {
		choice.retries = webhook.DefaultRetries
	}
	return choice
}

// readMessage reads the transcript from a file or stdin.
func readMessage(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read transcript from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript %q: %w", path, err)
	}
	return string(data), nil
}

// feedParser replays the transcript through the parser in growing-prefix
// chunks, the same shape the parser sees during live streaming.
func feedParser(ctx context.Context, parser *parse.StreamingParser, messageID, input string, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	for pos := 0; pos < len(input); pos += chunkSize {
		if err := ctx.Err(); err != nil {
			return nil // aborted, not a parse failure
		}
		end := pos + chunkSize
		if end > len(input) {
			end = len(input)
		}
		if _, err := parser.Parse(messageID, input[:end]); err != nil {
			return err
		}
	}
	return nil
}

// buildReport folds the run's terminal state into a report.
func buildReport(meta types.RunMeta, snaps []types.ActionSnapshot, parseErr error, duration time.Duration, artifacts int) *types.RunReport {
	report := &types.RunReport{
		RunID:           meta.RunID,
		Workspace:       meta.Workspace,
		Duration:        duration.Round(time.Millisecond),
		Artifacts:       artifacts,
		Actions:         snaps,
		ActionsByStatus: make(map[types.ActionStatus]int),
	}

	failed := 0
	for _, snap := range snaps {
		report.ActionsByStatus[snap.Status]++
		if snap.Status == types.StatusFailed {
			failed++
		}
	}

	switch {
	case parseErr != nil:
		report.Outcome = types.OutcomeParseFailure
		report.Message = parseErr.Error()
	case failed > 0:
		report.Outcome = types.OutcomeActionFailure
		report.Message = fmt.Sprintf("%d action(s) failed", failed)
	default:
		report.Outcome = types.OutcomeSuccess
	}

	return report
}

func statusPayload(snap types.ActionSnapshot) map[string]any {
	if snap.Error == "" {
		return nil
	}
	return map[string]any{"error": snap.Error}
}

// archiveRun builds the configured archiver and stores the journal and
// report under the run's partition.
func archiveRun(ctx context.Context, cfg archiveChoice, meta types.RunMeta, day, journalPath string, report *types.RunReport, logger *log.Logger) error {
	archiver, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return archiver.Archive(ctx, meta, day, journalPath, report)
}

func buildArchiver(ctx context.Context, cfg archiveChoice, logger *log.Logger) (store.Archiver, error) {
	switch cfg.backend {
	case "local":
		if cfg.path == "" {
			return nil, fmt.Errorf("--archive-path required for the local backend")
		}
		return store.NewLocal(cfg.path, logger), nil
	case "s3":
		bucket, prefix := splitS3Path(cfg.path)
		return store.NewS3(ctx, store.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.region,
			Endpoint:     cfg.endpoint,
			UsePathStyle: cfg.s3PathStyle,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown archive backend: %s (must be local or s3)", cfg.backend)
	}
}

// splitS3Path splits "bucket/prefix" into its parts. A bare bucket name
// yields an empty prefix.
func splitS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// publishCompletion sends the run completion event through the configured
// adapter. Publish failures are logged, never fatal: notification sits off
// the execution path.
func publishCompletion(cfg adapterChoice, meta types.RunMeta, day string, report *types.RunReport, archivePath string, alerts int, logger *log.Logger) {
	a, err := buildAdapter(cfg)
	if err != nil {
		logger.Warn("adapter setup failed", map[string]any{"error": err.Error()})
		return
	}
	defer func() { _ = a.Close() }()

	event := &adapter.RunCompletedEvent{
		EventType:       "run_completed",
		RunID:           meta.RunID,
		Workspace:       meta.Workspace,
		Day:             day,
		Outcome:         string(report.Outcome),
		ArchivePath:     archivePath,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Artifacts:       report.Artifacts,
		ActionsComplete: report.ActionsByStatus[types.StatusComplete],
		ActionsFailed:   report.ActionsByStatus[types.StatusFailed],
		ActionsAborted:  report.ActionsByStatus[types.StatusAborted],
		AlertCount:      alerts,
		DurationMs:      report.Duration.Milliseconds(),
	}

	publishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Publish(publishCtx, event); err != nil {
		logger.Warn("completion publish failed", map[string]any{"error": err.Error()})
	}
}

func buildAdapter(cfg adapterChoice) (adapter.Adapter, error) {
	switch cfg.kind {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.url,
			Headers: cfg.headers,
			Timeout: cfg.timeout,
			Retries: cfg.retries,
		})
	case "redis":
		return adapterredis.New(adapterredis.Config{
			URL:     cfg.url,
			Channel: cfg.channel,
			Timeout: cfg.timeout,
			Retries: cfg.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter: %s (must be webhook or redis)", cfg.kind)
	}
}

func outcomeToExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return exitSuccess
	case types.OutcomeActionFailure:
		return exitActionFailure
	case types.OutcomeParseFailure:
		return exitParseFailure
	case types.OutcomeArchiveFailure:
		return exitArchiveFailure
	default:
		return exitActionFailure
	}
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
