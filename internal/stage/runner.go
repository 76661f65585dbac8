package stage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"exampipe/internal/logging"
	"exampipe/internal/question"
	"exampipe/internal/services"
	"exampipe/internal/services/llm"
	"exampipe/internal/stagelog"
	"exampipe/internal/textutil"
)

// questionSnippetLimit bounds the question text echoed in unit logs.
const questionSnippetLimit = 80

// verdict is a parsed unit response. keep=false drops the unit without it
// being a failure; note explains why.
type verdict struct {
	item question.Item
	keep bool
	note string
}

// unit is one model call within an item stage. build runs lazily so a
// per-unit input problem (an unreadable image) only skips that unit.
type unit struct {
	label  string
	build  func() (llm.Request, error)
	decide func(content string) (verdict, error)
}

func normalizeName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func (c *Common) logger() *slog.Logger {
	if c.Logger == nil {
		return logging.NewNop()
	}
	return c.Logger
}

func (c *Common) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Common) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runUnits resets log, then processes units in order, appending every kept
// item. Unit failures are logged and skipped; only cancellation, a missing
// generator, or an unwritable log abort the stage.
func (c *Common) runUnits(ctx context.Context, name Name, log *stagelog.Log, delayed bool, units []unit) (Result, error) {
	result := Result{Stage: name}
	if c.Generator == nil {
		return result, services.Wrap(services.ErrConfiguration, string(name), "run", "model client unavailable", nil)
	}
	ctx = services.WithStage(ctx, string(name))
	logger := logging.WithContext(ctx, c.logger())

	if err := log.Reset(); err != nil {
		return result, services.Wrap(services.ErrConfiguration, string(name), "reset log", log.Path(), err)
	}

	start := c.now()

	for idx, u := range units {
		if idx > 0 && delayed {
			if err := c.sleep(ctx, c.Delay); err != nil {
				result.Elapsed = c.now().Sub(start)
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			result.Elapsed = c.now().Sub(start)
			return result, err
		}

		unitCtx := services.WithUnit(ctx, idx+1)
		unitLogger := logging.WithContext(unitCtx, c.logger()).With(
			logging.String("source", u.label),
			logging.Int(logging.FieldUnitTotal, len(units)),
		)
		result.Attempted++
		unitLogger.Debug("unit started", logging.String(logging.FieldEventType, "unit_start"))

		req, err := u.build()
		if err != nil {
			logging.WarnWithContext(unitLogger, "unit input unreadable", "unit_skipped",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the input file"),
			)
			continue
		}
		if req.MaxOutputTokens == 0 {
			req.MaxOutputTokens = c.MaxTokens
		}

		resp, err := c.Generator.Generate(unitCtx, req)
		result.InputTokens += resp.InputTokens
		result.OutputTokens += resp.OutputTokens
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Elapsed = c.now().Sub(start)
				return result, ctxErr
			}
			err = services.Wrap(services.ErrTransport, string(name), "generate", u.label, err)
			logging.WarnWithContext(unitLogger, "model call failed", "unit_skipped",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check network and API credentials"),
			)
			continue
		}

		v, err := u.decide(resp.Content)
		if err != nil {
			if !errors.Is(err, services.ErrMalformedResponse) {
				err = services.Wrap(services.ErrMalformedResponse, string(name), "parse response", u.label, err)
			}
			logging.WarnWithContext(unitLogger, "model response malformed", "unit_skipped",
				logging.Error(err),
				logging.String("response_snippet", llm.SummarizeSnippet(resp.Content)),
			)
			continue
		}
		if !v.keep {
			unitLogger.Info("unit rejected",
				logging.String(logging.FieldEventType, "unit_rejected"),
				logging.String("reason", v.note),
				logging.Duration("elapsed", resp.Elapsed),
			)
			continue
		}

		if err := log.Append(v.item); err != nil {
			result.Elapsed = c.now().Sub(start)
			return result, services.Wrap(services.ErrConfiguration, string(name), "append log", log.Path(), err)
		}
		result.Items = append(result.Items, v.item)
		result.Accepted++
		unitLogger.Info("unit accepted",
			logging.String(logging.FieldEventType, "unit_accepted"),
			logging.String("question", textutil.Snippet(v.item.Text(), questionSnippetLimit)),
			logging.Duration("elapsed", resp.Elapsed),
			logging.Tokens(resp.InputTokens, resp.OutputTokens),
		)
	}

	result.Elapsed = c.now().Sub(start)
	logger.Info("stage finished",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("attempted", result.Attempted),
		logging.Int("accepted", result.Accepted),
		logging.String("artifact", log.Path()),
	)
	return result, nil
}

// decodeItem parses a model response into an item carrying a question.
func decodeItem(name Name, content string) (question.Item, error) {
	payload := llm.SanitizeJSONPayload(content)
	item, err := question.Parse([]byte(payload))
	if err != nil {
		return question.Item{}, services.Wrap(services.ErrMalformedResponse, string(name), "decode item", "", err)
	}
	return item, nil
}
