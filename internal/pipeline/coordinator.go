package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"exampipe/internal/config"
	"exampipe/internal/history"
	"exampipe/internal/housekeeping"
	"exampipe/internal/logging"
	"exampipe/internal/notifications"
	"exampipe/internal/question"
	"exampipe/internal/resources"
	"exampipe/internal/services"
	"exampipe/internal/stage"
	"exampipe/internal/stagelog"
	"exampipe/internal/usage"
)

// Options controls a single run.
type Options struct {
	Mode Mode
	// From names the first stage to run. Later stages read their input back
	// from the previous stage's log. Empty starts at Transcription.
	From stage.Name
	// Prompter overrides the prompter derived from Mode.
	Prompter Prompter
	// In is read by the interactive prompter.
	In io.Reader
}

// Outcome describes a finished run.
type Outcome struct {
	RunID    string
	State    State
	Reason   string
	Results  []stage.Result
	Summary  usage.Summary
	Document string
	Elapsed  time.Duration
}

// Result returns the stage result for name, if that stage ran.
func (o Outcome) Result(name stage.Name) (stage.Result, bool) {
	for _, r := range o.Results {
		if r.Stage == name {
			return r, true
		}
	}
	return stage.Result{}, false
}

// Coordinator runs the stages in order against one configuration.
type Coordinator struct {
	cfg     *config.Config
	gen     stage.Generator
	logger  *slog.Logger
	history *history.Store
	notify  notifications.Service
	out     io.Writer
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	newID   func() string
}

// Option customizes the coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHistory records runs in store.
func WithHistory(store *history.Store) Option {
	return func(c *Coordinator) {
		c.history = store
	}
}

// WithNotifier announces finished runs through svc.
func WithNotifier(svc notifications.Service) Option {
	return func(c *Coordinator) {
		if svc != nil {
			c.notify = svc
		}
	}
}

// WithOutput sets where reports and prompts are written.
func WithOutput(w io.Writer) Option {
	return func(c *Coordinator) {
		if w != nil {
			c.out = w
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSleep overrides the pause between units.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

// WithRunID fixes the run identifier generator (tests).
func WithRunID(newID func() string) Option {
	return func(c *Coordinator) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// New constructs a coordinator.
func New(cfg *config.Config, gen stage.Generator, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		gen:    gen,
		logger: logging.NewNop(),
		notify: notifications.NewService(nil),
		out:    io.Discard,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "pipeline")
	return c
}

func (c *Coordinator) common(maxTokens int, logger *slog.Logger) stage.Common {
	return stage.Common{
		Generator: c.gen,
		Logger:    logger,
		MaxTokens: maxTokens,
		Delay:     c.cfg.InterUnitDelay(),
		Sleep:     c.sleep,
		Now:       c.now,
	}
}

// Runners builds the stage runners for the configured content tree.
func (c *Coordinator) Runners(logger *slog.Logger) (*stage.Transcriber, *stage.Perturber, *stage.Validator, *stage.Extractor) {
	cfg := c.cfg
	t := &stage.Transcriber{
		Common:     c.common(cfg.Stages.TranscribeMaxTokens, logger),
		PromptPath: cfg.PromptPath(config.TranscribePromptFile),
		SchemaPath: cfg.Paths.SchemaFile,
		ImageDir:   cfg.Paths.ImageDir,
		Log:        stagelog.NewLog(cfg.OutputPath(stagelog.TranscribedFile)),
	}
	p := &stage.Perturber{
		Common:     c.common(cfg.Stages.PerturbMaxTokens, logger),
		PromptPath: cfg.PromptPath(config.PerturbPromptFile),
		Log:        stagelog.NewLog(cfg.OutputPath(stagelog.PerturbedFile)),
	}
	v := &stage.Validator{
		Common:     c.common(cfg.Stages.ValidateMaxTokens, logger),
		PromptPath: cfg.PromptPath(config.ValidatePromptFile),
		Log:        stagelog.NewLog(cfg.OutputPath(stagelog.ValidatedFile)),
	}
	e := &stage.Extractor{
		Common:      c.common(cfg.Stages.ExtractMaxTokens, logger),
		PromptPath:  cfg.PromptPath(config.ExtractPromptFile),
		ExamplesDir: cfg.Paths.ExamplesDir,
		Document:    stagelog.NewDocument(cfg.OutputPath(stagelog.DocumentFile)),
	}
	return t, p, v, e
}

// HealthChecks reports the readiness of every stage's resources.
func (c *Coordinator) HealthChecks() []stage.Health {
	t, p, v, e := c.Runners(c.logger)
	return []stage.Health{t.HealthCheck(), p.HealthCheck(), v.HealthCheck(), e.HealthCheck()}
}

// run is the mutable state of one invocation.
type run struct {
	id       string
	state    State
	reason   string
	items    []question.Item
	ledger   usage.Ledger
	results  []stage.Result
	document string
}

func (r *run) advance(to State) {
	next, err := Transition(r.state, to)
	if err != nil {
		// Only reachable through a programming error; keep the run consistent.
		r.state, r.reason = Aborted, err.Error()
		return
	}
	r.state = next
}

func (r *run) abort(reason string) {
	if r.state.Terminal() {
		return
	}
	r.state, r.reason = Aborted, reason
}

// Run executes the pipeline. The returned error is non-nil only when the run
// could not start or was cancelled; stage-level failures are reported through
// Outcome.State and Outcome.Reason.
func (c *Coordinator) Run(ctx context.Context, opts Options) (Outcome, error) {
	start := c.now()
	from := opts.From
	if from == "" {
		from = stage.Transcription
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = NewPrompter(opts.Mode, opts.In, c.out)
	}

	r := &run{id: c.newID(), state: stateBefore(from)}
	ctx = services.WithRunID(ctx, r.id)
	logger := logging.WithContext(ctx, c.logger)

	lock, err := stagelog.AcquireLock(c.cfg.Paths.OutputDir)
	if err != nil {
		logging.ErrorWithContext(logger, "output directory unavailable", "lock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "wait for the other run to finish or remove a stale lock"),
		)
		return Outcome{RunID: r.id, State: Aborted, Reason: err.Error()}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	if opts.Mode == NonInteractive {
		WriteBanner(c.out)
	}
	c.beginHistory(ctx, logger, r, opts.Mode, from)
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("mode", opts.Mode.String()),
		logging.String("from", string(from)),
	)

	runErr := c.execute(ctx, logger, r, from, prompter)
	if r.state == Extracted {
		r.advance(Done)
	}

	outcome := Outcome{
		RunID:    r.id,
		State:    r.state,
		Reason:   r.reason,
		Results:  r.results,
		Document: r.document,
		Elapsed:  c.now().Sub(start),
	}
	outcome.Summary = usage.Summarize(r.ledger.Records(), usage.Rates{
		InputPerMillion:  c.cfg.Pricing.InputPerMillion,
		OutputPerMillion: c.cfg.Pricing.OutputPerMillion,
	})
	outcome.Summary.Elapsed = outcome.Elapsed

	c.writeFinal(outcome)
	c.finishHistory(ctx, logger, outcome)
	c.announce(ctx, logger, outcome, len(r.items))

	if r.state == Aborted {
		logging.WarnWithContext(logger, "pipeline aborted", "run_aborted",
			logging.String("reason", r.reason),
			logging.String(logging.FieldImpact, "later stages skipped"),
			logging.String(logging.FieldErrorHint, "inspect the stage logs in the output directory"),
		)
	} else {
		logger.Info("pipeline complete",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("document", r.document),
			logging.Duration("elapsed", outcome.Elapsed),
		)
	}
	return outcome, runErr
}

func (c *Coordinator) execute(ctx context.Context, logger *slog.Logger, r *run, from stage.Name, prompter Prompter) error {
	transcriber, perturber, validator, extractor := c.Runners(logger)

	clearImages := false
	if from == stage.Transcription {
		files, err := resources.ListFiles(c.cfg.Paths.ImageDir)
		if err != nil {
			r.abort(err.Error())
			return nil
		}
		if len(files) > 0 {
			answer, err := prompter.Confirm("Clear the image directory after transcription?")
			if err != nil {
				r.abort(err.Error())
				return err
			}
			clearImages = answer
		}
	} else {
		items, err := c.resumeItems(from)
		if err != nil {
			r.abort(err.Error())
			return nil
		}
		if len(items) == 0 {
			r.abort(fmt.Sprintf("nothing to resume: %s", emptyReason(previousStage(from))))
			return nil
		}
		r.items = items
		fmt.Fprintf(c.out, "Resuming at %s with %d question(s) from the previous run.\n", from, len(items))
	}

	started := false
	for _, name := range stage.Names {
		if name == from {
			started = true
		}
		if !started {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.abort("cancelled")
			return err
		}

		instruction, err := prompter.Instruction(name)
		if err != nil {
			r.abort(err.Error())
			return err
		}

		var result stage.Result
		switch name {
		case stage.Transcription:
			result, err = transcriber.Run(ctx, instruction)
		case stage.Perturbation:
			result, err = perturber.Run(ctx, r.items, instruction)
		case stage.Validation:
			result, err = validator.Run(ctx, r.items, instruction)
		case stage.Extraction:
			result, err = extractor.Run(ctx, r.items, instruction)
		}
		c.recordStage(ctx, logger, r, result)

		if err != nil {
			r.abort(fmt.Sprintf("%s failed: %s", name, strings.TrimSpace(err.Error())))
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			return nil
		}
		if result.Accepted == 0 {
			r.abort(emptyReason(name))
			return nil
		}

		r.advance(stateAfter(name))
		if name == stage.Extraction {
			r.document = extractor.Document.Path()
		} else {
			r.items = result.Items
		}

		if name == stage.Transcription && clearImages {
			report, err := housekeeping.ClearImages(c.out, c.cfg.Paths.ImageDir, housekeeping.Preconfirmed(true))
			if err == nil {
				err = report.Err()
			}
			if err != nil {
				logging.WarnWithContext(logger, "image cleanup incomplete", "cleanup_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "some source images remain"),
				)
			}
		}
	}
	return nil
}

func (c *Coordinator) resumeItems(from stage.Name) ([]question.Item, error) {
	var file string
	switch from {
	case stage.Perturbation:
		file = stagelog.TranscribedFile
	case stage.Validation:
		file = stagelog.PerturbedFile
	case stage.Extraction:
		file = stagelog.ValidatedFile
	default:
		return nil, fmt.Errorf("cannot resume at %q", from)
	}
	items, err := stagelog.NewLog(c.cfg.OutputPath(file)).ReadItems()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, string(from), "resume", "read previous stage log", err)
	}
	return items, nil
}

func previousStage(name stage.Name) stage.Name {
	for i, n := range stage.Names {
		if n == name && i > 0 {
			return stage.Names[i-1]
		}
	}
	return name
}

func (c *Coordinator) recordStage(ctx context.Context, logger *slog.Logger, r *run, result stage.Result) {
	if result.Stage == "" || result.Attempted == 0 {
		return
	}
	r.results = append(r.results, result)
	rec := result.Usage()
	if err := r.ledger.Add(rec); err != nil {
		logger.Warn("usage not recorded", logging.Error(err))
	}
	rates := usage.Rates{InputPerMillion: c.cfg.Pricing.InputPerMillion, OutputPerMillion: c.cfg.Pricing.OutputPerMillion}
	logger.Info("stage usage",
		logging.String(logging.FieldEventType, "stage_usage"),
		logging.String(logging.FieldStage, rec.Stage),
		logging.Tokens(rec.InputTokens, rec.OutputTokens),
		logging.Float64("cost_usd", rates.Cost(rec.InputTokens, rec.OutputTokens)),
	)
	if err := usage.WriteStageReport(c.out, rec, rates); err != nil {
		logger.Warn("failed to write stage report", logging.Error(err))
	}
	if c.history == nil {
		return
	}
	if err := c.history.RecordStage(ctx, r.id, rec); err != nil {
		logging.WarnWithContext(logger, "run history update failed", "history_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stage usage missing from history"),
		)
	}
}

func (c *Coordinator) beginHistory(ctx context.Context, logger *slog.Logger, r *run, mode Mode, from stage.Name) {
	if c.history == nil {
		return
	}
	err := c.history.BeginRun(ctx, history.Run{
		ID:        r.id,
		StartedAt: c.now(),
		Mode:      mode.String(),
		FromStage: string(from),
	})
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will not appear in history"),
		)
	}
}

func (c *Coordinator) finishHistory(ctx context.Context, logger *slog.Logger, o Outcome) {
	if c.history == nil {
		return
	}
	// Record the terminal state even when the run context was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := c.history.FinishRun(ctx, o.RunID, string(o.State), o.Reason, c.now()); err != nil {
		logging.WarnWithContext(logger, "run history update failed", "history_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run state missing from history"),
		)
	}
}

func (c *Coordinator) announce(ctx context.Context, logger *slog.Logger, o Outcome, questions int) {
	ctx = context.WithoutCancel(ctx)
	run := notifications.RunSummary{
		RunID:     o.RunID,
		Questions: questions,
		Document:  o.Document,
		Reason:    o.Reason,
		Cost:      usage.FormatCost(o.Summary.TotalCost),
		Elapsed:   o.Elapsed,
	}
	var err error
	if o.State == Done {
		err = c.notify.NotifyRunCompleted(ctx, run)
	} else {
		err = c.notify.NotifyRunAborted(ctx, run)
	}
	if err != nil {
		logging.WarnWithContext(logger, "run notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no alert delivered for this run"),
		)
	}
}
