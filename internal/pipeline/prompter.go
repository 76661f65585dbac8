package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"exampipe/internal/stage"
)

// Mode selects how the coordinator obtains operator input.
type Mode int

const (
	// Interactive asks the operator on the terminal.
	Interactive Mode = iota
	// NonInteractive uses empty instructions and answers "no" to every question.
	NonInteractive
)

func (m Mode) String() string {
	if m == NonInteractive {
		return "non-interactive"
	}
	return "interactive"
}

// Prompter supplies per-stage instructions and yes/no answers.
type Prompter interface {
	Instruction(name stage.Name) (string, error)
	Confirm(question string) (bool, error)
}

// NewPrompter returns the prompter for mode reading from in and echoing to out.
func NewPrompter(mode Mode, in io.Reader, out io.Writer) Prompter {
	if mode == NonInteractive {
		return &Defaults{Out: out}
	}
	return NewTerminal(in, out)
}

// Terminal reads answers line by line.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal builds a line-oriented prompter.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Instruction asks for optional free text; an empty line means none.
func (t *Terminal) Instruction(name stage.Name) (string, error) {
	stageHeader(t.out, name)
	fmt.Fprintf(t.out, "Enter special instruction for %s (or press Enter to skip): ", name)
	line, err := t.readLine()
	if err != nil {
		return "", err
	}
	return line, nil
}

// Confirm asks until the answer is y/yes or n/no. End of input counts as no.
func (t *Terminal) Confirm(question string) (bool, error) {
	for {
		fmt.Fprintf(t.out, "%s (y/n): ", question)
		line, err := t.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			if t.exhausted() {
				return false, nil
			}
		}
		fmt.Fprintln(t.out, "Please enter y or n.")
	}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) exhausted() bool {
	_, err := t.in.Peek(1)
	return errors.Is(err, io.EOF)
}

// Defaults answers every prompt without input and says so on Out.
type Defaults struct {
	Out io.Writer
}

// Instruction returns an empty instruction.
func (d *Defaults) Instruction(name stage.Name) (string, error) {
	if d.Out != nil {
		stageHeader(d.Out, name)
		fmt.Fprintf(d.Out, "[Non-interactive mode: using default prompt for %s]\n", name)
	}
	return "", nil
}

// Confirm always answers no.
func (d *Defaults) Confirm(question string) (bool, error) {
	if d.Out != nil {
		fmt.Fprintf(d.Out, "[Non-interactive mode: %s -> n]\n", question)
	}
	return false, nil
}

func stageHeader(w io.Writer, name stage.Name) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nSTAGE: %s\n%s\n", rule, strings.ToUpper(string(name)), rule)
}

// WriteBanner prints the non-interactive notice shown before a run.
func WriteBanner(w io.Writer) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(w, "\n%s\nRUNNING IN NON-INTERACTIVE MODE\n"+
		"  - All special instructions will be empty (using defaults)\n"+
		"  - All y/n questions will default to 'n'\n%s\n", rule, rule)
}
