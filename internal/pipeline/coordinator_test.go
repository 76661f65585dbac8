package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"exampipe/internal/config"
	"exampipe/internal/notifications"
	"exampipe/internal/pipeline"
	"exampipe/internal/services/llm"
	"exampipe/internal/stage"
	"exampipe/internal/stagelog"
	"exampipe/internal/testsupport"
)

// script answers each stage by the opening words of its prompt.
type script struct {
	transcribe func(call int) testsupport.Reply
	perturb    func(call int) testsupport.Reply
	validate   func(call int) testsupport.Reply
	extract    func(call int) testsupport.Reply

	counts map[string]int
}

func (s *script) generator() *testsupport.FakeGenerator {
	s.counts = map[string]int{}
	return &testsupport.FakeGenerator{Respond: func(_ int, req llm.Request) testsupport.Reply {
		var key string
		var fn func(int) testsupport.Reply
		switch {
		case strings.HasPrefix(req.Prompt, "Transcribe"):
			key, fn = "transcribe", s.transcribe
		case strings.HasPrefix(req.Prompt, "Perturb"):
			key, fn = "perturb", s.perturb
		case strings.HasPrefix(req.Prompt, "Validate"):
			key, fn = "validate", s.validate
		default:
			key, fn = "extract", s.extract
		}
		call := s.counts[key]
		s.counts[key]++
		if fn == nil {
			return testsupport.Reply{Err: errors.New("unexpected " + key + " call")}
		}
		return fn(call)
	}}
}

func questionReply(text string) func(int) testsupport.Reply {
	return func(call int) testsupport.Reply {
		return testsupport.Reply{Content: `{"question":"` + text + `"}`, InputTokens: 100, OutputTokens: 10}
	}
}

func wellPosed(ok bool) func(int) testsupport.Reply {
	return func(int) testsupport.Reply {
		if ok {
			return testsupport.Reply{Content: `{"well_posed": true, "reasoning": "fine"}`, InputTokens: 10, OutputTokens: 5}
		}
		return testsupport.Reply{Content: `{"well_posed": false, "reasoning": "ambiguous"}`, InputTokens: 10, OutputTokens: 5}
	}
}

func latexReply(int) testsupport.Reply {
	return testsupport.Reply{Content: `{"latex_document": "\\documentclass{exam}"}`, InputTokens: 500, OutputTokens: 200}
}

func newCoordinator(t *testing.T, cfg *config.Config, gen stage.Generator, opts ...pipeline.Option) (*pipeline.Coordinator, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]pipeline.Option{pipeline.WithOutput(&out)}, opts...)
	return pipeline.New(cfg, gen, opts...), &out
}

func TestRunCompletesAllStages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("q1.png", "q2.png", "q3.png"))
	s := &script{
		transcribe: questionReply("original"),
		perturb:    questionReply("perturbed"),
		validate:   wellPosed(true),
		extract:    latexReply,
	}
	coord, out := newCoordinator(t, cfg, s.generator())

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.State != pipeline.Done {
		t.Fatalf("expected Done, got %s (%s)", outcome.State, outcome.Reason)
	}
	if outcome.RunID == "" {
		t.Fatal("expected a run id")
	}
	if len(outcome.Results) != 4 {
		t.Fatalf("expected 4 stage results, got %d", len(outcome.Results))
	}
	for _, file := range []string{stagelog.TranscribedFile, stagelog.PerturbedFile, stagelog.ValidatedFile} {
		if lines := testsupport.ReadLines(t, cfg.OutputPath(file)); len(lines) != 3 {
			t.Fatalf("%s: expected 3 records, got %d", file, len(lines))
		}
	}
	perturbed := testsupport.ReadLines(t, cfg.OutputPath(stagelog.ValidatedFile))
	if perturbed[0] != `{"question":"perturbed"}` {
		t.Fatalf("validated log should carry perturbed items, got %s", perturbed[0])
	}
	doc, err := os.ReadFile(outcome.Document)
	if err != nil || string(doc) != `\documentclass{exam}` {
		t.Fatalf("unexpected document %q err=%v", doc, err)
	}

	// 3*100+3*100+3*10+500 input, 3*10+3*10+3*5+200 output.
	if outcome.Summary.InputTokens != 1130 || outcome.Summary.OutputTokens != 275 {
		t.Fatalf("unexpected totals in=%d out=%d", outcome.Summary.InputTokens, outcome.Summary.OutputTokens)
	}
	text := out.String()
	for _, want := range []string{"RUNNING IN NON-INTERACTIVE MODE", "PIPELINE DONE", "Document preview:\n" + strings.Repeat("-", 60) + "\n\\documentclass{exam}\n", stagelog.DocumentFile} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	// Non-interactive runs never clear images.
	if _, err := os.Stat(filepath.Join(cfg.Paths.ImageDir, "q1.png")); err != nil {
		t.Fatalf("image removed in non-interactive mode: %v", err)
	}
}

func TestRunPreviewTruncatesLongDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("q1.png"))
	document := "\\documentclass{exam}\n" + strings.Repeat("x", 600) + "TAIL"
	payload, err := json.Marshal(map[string]string{"latex_document": document})
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	s := &script{
		transcribe: questionReply("original"),
		perturb:    questionReply("perturbed"),
		validate:   wellPosed(true),
		extract: func(int) testsupport.Reply {
			return testsupport.Reply{Content: string(payload)}
		},
	}
	coord, out := newCoordinator(t, cfg, s.generator())

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil || outcome.State != pipeline.Done {
		t.Fatalf("expected Done, got %s err=%v", outcome.State, err)
	}
	text := out.String()
	if !strings.Contains(text, document[:500]+"...\n") {
		t.Fatalf("expected 500-character preview with marker:\n%s", text)
	}
	if strings.Contains(text, "TAIL") {
		t.Fatalf("preview should be truncated:\n%s", text)
	}
}

func TestScenarioAAllImagesTranscribed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png", "b.png", "c.png"))
	s := &script{
		transcribe: questionReply("q"),
		perturb:    func(int) testsupport.Reply { return testsupport.Reply{Content: `{}`} },
	}
	coord, _ := newCoordinator(t, cfg, s.generator())

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if lines := testsupport.ReadLines(t, cfg.OutputPath(stagelog.TranscribedFile)); len(lines) != 3 {
		t.Fatalf("expected 3 transcribed records, got %d", len(lines))
	}
	res, ok := outcome.Result(stage.Transcription)
	if !ok || res.Accepted != 3 {
		t.Fatalf("unexpected transcription result %+v", res)
	}
	// Transcription advanced; the run stops later because perturbation accepted nothing.
	if outcome.State != pipeline.Aborted || outcome.Reason != "no questions perturbed" {
		t.Fatalf("unexpected outcome %s (%s)", outcome.State, outcome.Reason)
	}
}

func TestScenarioBMalformedImageSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png", "b.png", "c.png"))
	s := &script{
		transcribe: func(call int) testsupport.Reply {
			if call == 1 {
				return testsupport.Reply{Content: `{"text":"no question"}`, InputTokens: 100, OutputTokens: 10}
			}
			return testsupport.Reply{Content: `{"question":"image ` + string(rune('1'+call)) + `"}`, InputTokens: 100, OutputTokens: 10}
		},
		perturb:  func(call int) testsupport.Reply { return testsupport.Reply{Content: `{"question":"p"}`} },
		validate: wellPosed(true),
		extract:  latexReply,
	}
	coord, _ := newCoordinator(t, cfg, s.generator())

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	lines := testsupport.ReadLines(t, cfg.OutputPath(stagelog.TranscribedFile))
	if len(lines) != 2 || lines[0] != `{"question":"image 1"}` || lines[1] != `{"question":"image 3"}` {
		t.Fatalf("unexpected transcribed log %v", lines)
	}
	if outcome.State != pipeline.Done {
		t.Fatalf("expected Done, got %s (%s)", outcome.State, outcome.Reason)
	}
	res, _ := outcome.Result(stage.Transcription)
	if res.Attempted != 3 || res.Accepted != 2 || res.InputTokens != 300 {
		t.Fatalf("unexpected transcription result %+v", res)
	}
}

func TestScenarioCValidationRejectsEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png", "b.png"))
	s := &script{
		transcribe: questionReply("q"),
		perturb:    questionReply("p"),
		validate:   wellPosed(false),
	}
	coord, _ := newCoordinator(t, cfg, s.generator())

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.State != pipeline.Aborted {
		t.Fatalf("expected Aborted, got %s", outcome.State)
	}
	if outcome.Reason != "no questions passed validation" {
		t.Fatalf("unexpected reason %q", outcome.Reason)
	}
	info, err := os.Stat(cfg.OutputPath(stagelog.ValidatedFile))
	if err != nil || info.Size() != 0 {
		t.Fatalf("expected empty validated log, err=%v", err)
	}
	if s.counts["extract"] != 0 {
		t.Fatalf("extraction invoked %d times", s.counts["extract"])
	}
	if _, ok := outcome.Result(stage.Extraction); ok {
		t.Fatal("extraction should not have a result")
	}
	if _, err := os.Stat(cfg.OutputPath(stagelog.DocumentFile)); !os.IsNotExist(err) {
		t.Fatalf("document should not exist, err=%v", err)
	}
}

func TestScenarioDExtractionMissingDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png"))
	docPath := cfg.OutputPath(stagelog.DocumentFile)
	testsupport.WriteText(t, docPath, "previous document")
	s := &script{
		transcribe: questionReply("q"),
		perturb:    questionReply("p"),
		validate:   wellPosed(true),
		extract: func(int) testsupport.Reply {
			return testsupport.Reply{Content: `{"document": "oops"}`, InputTokens: 40, OutputTokens: 4}
		},
	}
	coord, _ := newCoordinator(t, cfg, s.generator())

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.State != pipeline.Aborted || !strings.Contains(outcome.Reason, "Extraction failed") {
		t.Fatalf("unexpected outcome %s (%s)", outcome.State, outcome.Reason)
	}
	data, err := os.ReadFile(docPath)
	if err != nil || string(data) != "previous document" {
		t.Fatalf("document overwritten: %q err=%v", data, err)
	}
	res, ok := outcome.Result(stage.Extraction)
	if !ok || res.InputTokens != 40 {
		t.Fatalf("billed extraction tokens should be recorded, got %+v", res)
	}
	if outcome.Document != "" {
		t.Fatalf("unexpected document path %q", outcome.Document)
	}
}

func TestRunWithNoImagesAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree())
	gen := &testsupport.FakeGenerator{}
	coord, _ := newCoordinator(t, cfg, gen)

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.State != pipeline.Aborted || outcome.Reason != "no questions transcribed" {
		t.Fatalf("unexpected outcome %s (%s)", outcome.State, outcome.Reason)
	}
	if gen.Calls() != 0 {
		t.Fatalf("expected no model calls, got %d", gen.Calls())
	}
}

func TestInteractiveRunClearsImagesAndUsesInstructions(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png", "b.jpg"))
	s := &script{
		transcribe: questionReply("q"),
		perturb:    questionReply("p"),
		validate:   wellPosed(true),
		extract:    latexReply,
	}
	gen := s.generator()
	coord, out := newCoordinator(t, cfg, gen)

	input := strings.NewReader("maybe\ny\nuse metric units\n\n\nkeep it short\n")
	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.Interactive, In: input})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.State != pipeline.Done {
		t.Fatalf("expected Done, got %s (%s)", outcome.State, outcome.Reason)
	}
	entries, err := os.ReadDir(cfg.Paths.ImageDir)
	if err != nil {
		t.Fatalf("read image dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected image dir to be emptied, found %d entries", len(entries))
	}
	reqs := gen.Requests()
	if !strings.Contains(reqs[0].Prompt, "Transcribe the question. use metric units") {
		t.Fatalf("instruction not rendered into transcription prompt: %q", reqs[0].Prompt)
	}
	last := reqs[len(reqs)-1].Prompt
	if !strings.HasPrefix(last, "Convert to LaTeX. keep it short") {
		t.Fatalf("instruction not rendered into extraction prompt: %q", last)
	}
	if !strings.Contains(out.String(), "Please enter y or n.") {
		t.Fatalf("expected re-prompt for invalid answer:\n%s", out.String())
	}
	if strings.Contains(out.String(), "NON-INTERACTIVE") {
		t.Fatal("interactive run should not print the banner")
	}
}

func TestResumeFromValidationReadsPerturbedLog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png"))
	testsupport.WriteText(t, cfg.OutputPath(stagelog.TranscribedFile), `{"question":"old"}`+"\n")
	testsupport.WriteText(t, cfg.OutputPath(stagelog.PerturbedFile), `{"question":"x"}`+"\n"+`{"question":"y"}`+"\n")
	s := &script{validate: wellPosed(true), extract: latexReply}
	coord, _ := newCoordinator(t, cfg, s.generator())

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive, From: stage.Validation})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.State != pipeline.Done {
		t.Fatalf("expected Done, got %s (%s)", outcome.State, outcome.Reason)
	}
	if s.counts["transcribe"] != 0 || s.counts["perturb"] != 0 || s.counts["validate"] != 2 {
		t.Fatalf("unexpected call counts %v", s.counts)
	}
	if lines := testsupport.ReadLines(t, cfg.OutputPath(stagelog.TranscribedFile)); len(lines) != 1 {
		t.Fatal("earlier stage log should be untouched on resume")
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("expected 2 stage results, got %d", len(outcome.Results))
	}
}

func TestResumeWithEmptyPreviousLogAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree())
	testsupport.WriteText(t, cfg.OutputPath(stagelog.ValidatedFile), "")
	gen := &testsupport.FakeGenerator{}
	coord, _ := newCoordinator(t, cfg, gen)

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive, From: stage.Extraction})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.State != pipeline.Aborted || !strings.Contains(outcome.Reason, "nothing to resume") {
		t.Fatalf("unexpected outcome %s (%s)", outcome.State, outcome.Reason)
	}
	if gen.Calls() != 0 {
		t.Fatalf("expected no calls, got %d", gen.Calls())
	}
}

func TestRunRefusesWhenOutputLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png"))
	lock, err := stagelog.AcquireLock(cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	gen := &testsupport.FakeGenerator{}
	coord, _ := newCoordinator(t, cfg, gen)
	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if !errors.Is(err, stagelog.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if outcome.State != pipeline.Aborted || gen.Calls() != 0 {
		t.Fatalf("unexpected outcome %+v calls=%d", outcome, gen.Calls())
	}
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png", "b.png"))
	store := testsupport.MustOpenHistory(t, cfg)
	s := &script{
		transcribe: questionReply("q"),
		perturb:    questionReply("p"),
		validate:   wellPosed(false),
	}
	coord, _ := newCoordinator(t, cfg, s.generator(),
		pipeline.WithHistory(store),
		pipeline.WithRunID(func() string { return "run-fixed" }),
	)

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.RunID != "run-fixed" {
		t.Fatalf("unexpected run id %q", outcome.RunID)
	}

	run, err := store.GetRun(context.Background(), "run-fixed")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.FinalState != string(pipeline.Aborted) || run.Error != "no questions passed validation" || !run.Finished() {
		t.Fatalf("unexpected run row %+v", run)
	}
	if run.Mode != "non-interactive" || run.FromStage != string(stage.Transcription) {
		t.Fatalf("unexpected run metadata %+v", run)
	}
	records, err := store.StageUsage(context.Background(), "run-fixed")
	if err != nil {
		t.Fatalf("StageUsage: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 stage records, got %d", len(records))
	}
	if records[2].Stage != string(stage.Validation) || records[2].Accepted != 0 || records[2].Attempted != 2 {
		t.Fatalf("unexpected validation record %+v", records[2])
	}
}

func TestCancelledRunReturnsError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	coord, _ := newCoordinator(t, cfg, &testsupport.FakeGenerator{})

	outcome, err := coord.Run(ctx, pipeline.Options{Mode: pipeline.NonInteractive})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if outcome.State != pipeline.Aborted {
		t.Fatalf("expected Aborted, got %s", outcome.State)
	}
}

func TestHealthChecksReportMissingResources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	coord, _ := newCoordinator(t, cfg, &testsupport.FakeGenerator{})
	for _, h := range coord.HealthChecks() {
		if h.Ready {
			t.Fatalf("%s should not be ready without a content tree", h.Name)
		}
	}

	cfg = testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png"))
	coord, _ = newCoordinator(t, cfg, &testsupport.FakeGenerator{})
	for _, h := range coord.HealthChecks() {
		if !h.Ready {
			t.Fatalf("%s not ready: %s", h.Name, h.Detail)
		}
	}
}

type recordingNotifier struct {
	completed []notifications.RunSummary
	aborted   []notifications.RunSummary
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, run notifications.RunSummary) error {
	n.completed = append(n.completed, run)
	return nil
}

func (n *recordingNotifier) NotifyRunAborted(_ context.Context, run notifications.RunSummary) error {
	n.aborted = append(n.aborted, run)
	return errors.New("ntfy down")
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func TestRunAnnouncesOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages("a.png", "b.png"))
	s := &script{
		transcribe: questionReply("q"),
		perturb:    questionReply("p"),
		validate:   wellPosed(true),
		extract:    latexReply,
	}
	notifier := &recordingNotifier{}
	coord, _ := newCoordinator(t, cfg, s.generator(), pipeline.WithNotifier(notifier))

	outcome, err := coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(notifier.completed) != 1 || len(notifier.aborted) != 0 {
		t.Fatalf("unexpected notifications %+v", notifier)
	}
	got := notifier.completed[0]
	if got.RunID != outcome.RunID || got.Questions != 2 || got.Document != outcome.Document {
		t.Fatalf("unexpected summary %+v", got)
	}

	// A failing notifier never changes the outcome.
	cfg = testsupport.NewConfig(t, testsupport.WithContentTree())
	coord, _ = newCoordinator(t, cfg, &testsupport.FakeGenerator{}, pipeline.WithNotifier(notifier))
	outcome, err = coord.Run(context.Background(), pipeline.Options{Mode: pipeline.NonInteractive})
	if err != nil || outcome.State != pipeline.Aborted {
		t.Fatalf("unexpected outcome %s err=%v", outcome.State, err)
	}
	if len(notifier.aborted) != 1 || notifier.aborted[0].Reason != "no questions transcribed" {
		t.Fatalf("unexpected abort notifications %+v", notifier.aborted)
	}
}
