package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"framelabel/internal/annotate"
	"framelabel/internal/config"
	"framelabel/internal/frame"
	"framelabel/internal/ledger"
	"framelabel/internal/logging"
	"framelabel/internal/prompt"
	"framelabel/internal/results"
	"framelabel/internal/sampler"
	"framelabel/internal/services"
	"framelabel/internal/shardset"
)

// State is the coordinator's lifecycle position.
type State string

const (
	StateInit        State = "INIT"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateInterrupted State = "INTERRUPTED"
	StateFinalizing  State = "FINALIZING"
	StateDone        State = "DONE"
)

const lockFilename = "framelabel.lock"

// Annotator is the annotation-call boundary the coordinator drives. The
// production implementation is annotate.Client; tests substitute fakes.
type Annotator interface {
	Annotate(ctx context.Context, req annotate.Request) (*annotate.Result, error)
}

// RunStats counts per-frame outcomes for one run.
type RunStats struct {
	TotalSampled int
	Processed    int
	Skipped      int
	Failed       int
}

// Outcome is what a finished run reports back to the CLI.
type Outcome struct {
	RunID   string
	State   State
	Stats   RunStats
	Summary results.Summary
}

// Options configures a Coordinator.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	Annotator Annotator
	// Ledger is optional; without it run history is simply not recorded.
	Ledger *ledger.Ledger
	Resume bool
	// Now is overridable for tests.
	Now func() time.Time
}

// Coordinator drives the sequential frame loop: resolve shards, sample,
// extract, annotate, persist, checkpoint. One bad frame never aborts the run;
// only shard resolution and persistence failures are fatal.
type Coordinator struct {
	cfg       *config.Config
	logger    *slog.Logger
	annotator Annotator
	ledger    *ledger.Ledger
	resume    bool
	now       func() time.Time

	runID     string
	state     State
	stats     RunStats
	processed map[string]struct{}
}

// New validates dependencies and returns a coordinator in the INIT state.
func New(opts Options) (*Coordinator, error) {
	if opts.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "config required", nil)
	}
	if opts.Annotator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "annotator required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		cfg:       opts.Config,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		annotator: opts.Annotator,
		ledger:    opts.Ledger,
		resume:    opts.Resume,
		now:       now,
		runID:     uuid.NewString(),
		state:     StateInit,
		processed: map[string]struct{}{},
	}, nil
}

// State reports the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	return c.state
}

// Run executes the pipeline to completion or graceful interruption. Both end
// in the DONE state with a nil error; the outcome distinguishes them. A
// non-nil error means the run aborted before or during the loop and persisted
// state may be behind the last checkpoint interval.
func (c *Coordinator) Run(ctx context.Context) (*Outcome, error) {
	startedAt := c.now()
	ctx = services.WithRunID(ctx, c.runID)
	logger := c.logger.With(logging.String(logging.FieldRunID, c.runID))

	if err := c.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "ensure output dirs", c.cfg.Output.Dir, err)
	}

	lock := flock.New(filepath.Join(c.cfg.Output.Dir, lockFilename))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "lock output dir", c.cfg.Output.Dir, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "lock output dir",
			fmt.Sprintf("%s is in use by another run", c.cfg.Output.Dir), nil)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := results.NewStore(c.cfg.ResultsDir(), c.cfg.CheckpointPath(), c.logger)
	if err != nil {
		return nil, err
	}

	smp, err := sampler.New(c.cfg.Dataset.SourceRateHz, c.cfg.Dataset.TargetRateHz)
	if err != nil {
		return nil, err
	}
	extractor := frame.NewExtractor(c.cfg.Trajectory.ExpectedPastPoints(), c.cfg.Trajectory.ExpectedFuturePoints())
	builder, err := prompt.NewBuilder(c.cfg.Annotator.PromptTemplate)
	if err != nil {
		return nil, err
	}

	shards, err := shardset.Resolve(c.cfg.Dataset.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("shard set resolved",
		logging.Int("shards", len(shards)),
		logging.Int("stride", smp.Stride()),
		logging.Bool("resume", c.resume))

	if c.resume {
		loaded, err := store.LoadCheckpoint()
		if err != nil {
			return nil, err
		}
		c.processed = loaded
		logger.Info("checkpoint loaded", logging.Int("processed_frames", len(loaded)))
	}

	if c.ledger != nil {
		if err := c.ledger.StartRun(ctx, c.runID, c.cfg.Dataset.Path, c.cfg.Annotator.Model, c.resume, startedAt); err != nil {
			logger.Warn("run ledger unavailable", logging.Error(err))
		}
	}

	c.state = StateRunning
	loopErr := c.loop(ctx, logger, shards, smp, extractor, builder, store)
	if loopErr != nil {
		c.recordRunFailure(logger)
		return nil, loopErr
	}

	if ctx.Err() != nil {
		c.state = StateInterrupted
		logger.Info("run interrupted, finalizing")
	} else {
		c.state = StateCompleted
	}

	summary, err := c.finalize(logger, store)
	if err != nil {
		c.recordRunFailure(logger)
		return nil, err
	}

	outcome := &Outcome{RunID: c.runID, State: c.state, Stats: c.stats, Summary: *summary}
	c.state = StateDone
	logger.Info("run done",
		logging.Int("sampled", c.stats.TotalSampled),
		logging.Int("processed", c.stats.Processed),
		logging.Int("skipped", c.stats.Skipped),
		logging.Int("failed", c.stats.Failed))
	return outcome, nil
}

// loop walks every shard in sequence order and every record within it,
// advancing one global frame counter so the sampled set is identical across
// runs. Returns only fatal errors.
func (c *Coordinator) loop(ctx context.Context, logger *slog.Logger, shards []shardset.Shard,
	smp sampler.Sampler, extractor frame.Extractor, builder prompt.Builder, store *results.Store) error {

	var globalIndex int64
	interval := c.cfg.Processing.CheckpointInterval
	if interval <= 0 {
		interval = 1
	}

	for _, shard := range shards {
		if ctx.Err() != nil {
			return nil
		}
		shardLogger := logger.With(logging.String(logging.FieldShard, filepath.Base(shard.Path)))

		reader, err := shardset.OpenReader(shard.Path)
		if err != nil {
			return err
		}

		err = func() error {
			defer reader.Close()
			for {
				if ctx.Err() != nil {
					return nil
				}
				payload, err := reader.Next()
				if err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}

				index := globalIndex
				globalIndex++
				if !smp.Included(index) {
					continue
				}
				if c.cfg.Processing.MaxFrames > 0 && c.stats.TotalSampled >= c.cfg.Processing.MaxFrames {
					return errFrameCapReached
				}
				c.stats.TotalSampled++

				if err := c.processFrame(ctx, shardLogger, index, payload, extractor, builder, store); err != nil {
					return err
				}
				if c.stats.TotalSampled%interval == 0 {
					if err := store.SaveCheckpoint(c.processed); err != nil {
						return err
					}
					shardLogger.Debug("checkpoint saved", logging.Int("processed", len(c.processed)))
				}
			}
		}()
		if errors.Is(err, errFrameCapReached) {
			logger.Info("frame cap reached", logging.Int("max_frames", c.cfg.Processing.MaxFrames))
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// errFrameCapReached is an internal loop-exit signal, never returned to callers.
var errFrameCapReached = errors.New("frame cap reached")

// processFrame handles one sampled frame. Per-frame failures are counted and
// logged, never propagated; a result-write failure is the exception because
// silently losing persisted state would break resumability.
func (c *Coordinator) processFrame(ctx context.Context, logger *slog.Logger, index int64,
	payload []byte, extractor frame.Extractor, builder prompt.Builder, store *results.Store) error {

	frameLogger := logger.With(logging.Int64(logging.FieldGlobalIdx, index))

	extracted, err := extractor.Extract(payload)
	if err != nil {
		c.stats.Skipped++
		frameLogger.Warn("frame rejected",
			logging.String(logging.FieldEventType, "extract_failed"),
			logging.Error(err))
		c.recordFrameFailure(ctx, fmt.Sprintf("index_%d", index), err)
		return nil
	}

	frameLogger = frameLogger.With(logging.String(logging.FieldFrameID, extracted.FrameID))
	if _, done := c.processed[extracted.FrameID]; done {
		c.stats.Skipped++
		frameLogger.Debug("frame already processed",
			logging.String(logging.FieldEventType, "resume_skip"))
		return nil
	}

	requestID := uuid.NewString()
	callCtx := services.WithFrameID(services.WithRequestID(context.WithoutCancel(ctx), requestID), extracted.FrameID)

	result, err := c.annotator.Annotate(callCtx, annotate.Request{
		FrameID:    extracted.FrameID,
		UserPrompt: builder.Build(extracted),
	})
	if err != nil {
		c.stats.Failed++
		frameLogger.Warn("annotation failed",
			logging.String(logging.FieldRequestID, requestID),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err))
		c.recordFrameFailure(ctx, extracted.FrameID, err)
		return nil
	}

	record := results.BuildRecord(extracted, result, c.cfg.Annotator.Model, c.cfg.Annotator.ImageMode, c.now())
	if err := store.SaveResult(extracted.FrameID, record); err != nil {
		frameLogger.Error("result write failed", logging.Error(err))
		return err
	}

	c.processed[extracted.FrameID] = struct{}{}
	c.stats.Processed++
	frameLogger.Debug("frame annotated", logging.String(logging.FieldRequestID, requestID))
	return nil
}

// finalize always writes a final checkpoint and summary so the summary
// reflects actual persisted state, then records the run in the ledger.
func (c *Coordinator) finalize(logger *slog.Logger, store *results.Store) (*results.Summary, error) {
	finalState := c.state
	c.state = StateFinalizing

	if err := store.SaveCheckpoint(c.processed); err != nil {
		return nil, err
	}

	summary := &results.Summary{
		RunID:       c.runID,
		CompletedAt: c.now().UTC().Format(time.RFC3339),
		Interrupted: finalState == StateInterrupted,
		TotalFrames: c.stats.TotalSampled,
		Processed:   c.stats.Processed,
		Skipped:     c.stats.Skipped,
		Failed:      c.stats.Failed,
		SuccessRate: successRate(c.stats),
	}
	if err := store.WriteSummary(summary); err != nil {
		return nil, err
	}

	if c.ledger != nil {
		state := ledger.RunStateCompleted
		if finalState == StateInterrupted {
			state = ledger.RunStateInterrupted
		}
		if err := c.ledger.FinishRun(context.Background(), c.runID, state,
			c.stats.TotalSampled, c.stats.Processed, c.stats.Skipped, c.stats.Failed, c.now()); err != nil {
			logger.Warn("run ledger update failed", logging.Error(err))
		}
	}

	c.state = finalState
	return summary, nil
}

func (c *Coordinator) recordFrameFailure(ctx context.Context, frameID string, err error) {
	if c.ledger == nil {
		return
	}
	// The run context may already be canceled during graceful interruption;
	// the failure row should still land.
	ctx = context.WithoutCancel(ctx)
	if ledgerErr := c.ledger.RecordFailure(ctx, c.runID, frameID, services.Kind(err), err.Error(), c.now()); ledgerErr != nil {
		c.logger.Warn("failure not recorded in ledger", logging.Error(ledgerErr))
	}
}

func (c *Coordinator) recordRunFailure(logger *slog.Logger) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.FinishRun(context.Background(), c.runID, ledger.RunStateFailed,
		c.stats.TotalSampled, c.stats.Processed, c.stats.Skipped, c.stats.Failed, c.now()); err != nil {
		logger.Warn("run ledger update failed", logging.Error(err))
	}
}

func successRate(stats RunStats) float64 {
	attempted := stats.Processed + stats.Failed
	if attempted == 0 {
		return 0
	}
	return float64(stats.Processed) / float64(attempted)
}
