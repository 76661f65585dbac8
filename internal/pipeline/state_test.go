package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"exampipe/internal/stage"
)

func TestTransitionFollowsStageOrder(t *testing.T) {
	valid := []struct{ from, to State }{
		{NotStarted, Transcribed},
		{Transcribed, Perturbed},
		{Perturbed, Validated},
		{Validated, Extracted},
		{Extracted, Done},
		{NotStarted, Aborted},
		{Validated, Aborted},
	}
	for _, tc := range valid {
		got, err := Transition(tc.from, tc.to)
		if err != nil || got != tc.to {
			t.Fatalf("%s -> %s: got %s err=%v", tc.from, tc.to, got, err)
		}
	}

	invalid := []struct{ from, to State }{
		{NotStarted, Perturbed},
		{Transcribed, Validated},
		{Perturbed, Transcribed},
		{Done, Aborted},
		{Aborted, Transcribed},
		{Validated, Done},
	}
	for _, tc := range invalid {
		got, err := Transition(tc.from, tc.to)
		if err == nil {
			t.Fatalf("%s -> %s should fail", tc.from, tc.to)
		}
		if got != tc.from {
			t.Fatalf("failed transition should keep %s, got %s", tc.from, got)
		}
	}
}

func TestStateHelpers(t *testing.T) {
	for _, name := range stage.Names {
		before := stateBefore(name)
		if got, err := Transition(before, stateAfter(name)); err != nil || got != stateAfter(name) {
			t.Fatalf("%s: %s -> %s not allowed: %v", name, before, stateAfter(name), err)
		}
		if emptyReason(name) == "" {
			t.Fatalf("%s has no empty reason", name)
		}
	}
	if !Done.Terminal() || !Aborted.Terminal() || Validated.Terminal() {
		t.Fatal("unexpected terminal states")
	}
}

func TestTerminalPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(Interactive, strings.NewReader("  be strict  \nYES\nnope\nn\n"), &out)

	instruction, err := p.Instruction(stage.Perturbation)
	if err != nil || instruction != "be strict" {
		t.Fatalf("unexpected instruction %q err=%v", instruction, err)
	}
	if ok, err := p.Confirm("Proceed?"); err != nil || !ok {
		t.Fatalf("expected yes, got %v err=%v", ok, err)
	}
	if ok, err := p.Confirm("Proceed?"); err != nil || ok {
		t.Fatalf("expected no after re-prompt, got %v err=%v", ok, err)
	}
	if ok, _ := p.Confirm("Proceed?"); ok {
		t.Fatal("end of input should answer no")
	}
	text := out.String()
	if !strings.Contains(text, "STAGE: PERTURBATION") {
		t.Fatalf("missing stage header:\n%s", text)
	}
	if strings.Count(text, "Please enter y or n.") != 1 {
		t.Fatalf("expected one re-prompt:\n%s", text)
	}
}

func TestDefaultsPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(NonInteractive, nil, &out)

	instruction, err := p.Instruction(stage.Extraction)
	if err != nil || instruction != "" {
		t.Fatalf("unexpected instruction %q err=%v", instruction, err)
	}
	if ok, err := p.Confirm("Clear images?"); err != nil || ok {
		t.Fatalf("defaults must answer no, got %v err=%v", ok, err)
	}
	if !strings.Contains(out.String(), "[Non-interactive mode: using default prompt for Extraction]") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if NonInteractive.String() != "non-interactive" || Interactive.String() != "interactive" {
		t.Fatal("unexpected mode names")
	}
}
