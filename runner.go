package palgraph

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
)

// Runner drives an interactive chat loop over an Engine using provided IO.
// This allows for easy testing and integration with different frontends
// (CLI, TUI, etc).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	ThreadID string
	UserID   string

	// ShowStatus prints per-stage progress lines as the pipeline advances.
	ShowStatus bool
}

// NewRunner creates a Runner on a fresh thread. The caller sets Input and
// Output (typically os.Stdin and os.Stdout).
func NewRunner(userID string) *Runner {
	return &Runner{
		ThreadID:   uuid.NewString(),
		UserID:     userID,
		ShowStatus: true,
	}
}

// Run executes the chat loop until EOF or an exit command.
func (r *Runner) Run(ctx context.Context, engine *Engine) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)
	writer := r.Output

	fmt.Fprintf(writer, "thread %s (type 'exit' to quit)\n", r.ThreadID)

	for {
		fmt.Fprint(writer, "> ")
		text, err := lineReader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		input := strings.TrimSpace(text)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(writer, "Bye!")
			return nil
		}

		events, err := engine.Run(ctx, r.ThreadID, graph.RunInput{
			UserID:  r.UserID,
			Content: input,
		})
		if err != nil {
			return fmt.Errorf("run error: %w", err)
		}

		for events != nil {
			suspension := r.consume(writer, events)
			if suspension == nil {
				break
			}

			answer, err := r.askUser(lineReader, writer, suspension)
			if err != nil {
				return err
			}
			events, err = engine.Resume(ctx, r.ThreadID, answer)
			if err != nil {
				return fmt.Errorf("resume error: %w", err)
			}
		}
	}
}

// consume drains one event stream, printing as it goes. Returns the
// suspension request if the run paused, nil when the turn finished.
func (r *Runner) consume(writer io.Writer, events <-chan domain.Event) *domain.SuspensionRequest {
	for ev := range events {
		switch ev.Type {
		case domain.EventStatus:
			if r.ShowStatus {
				fmt.Fprintf(writer, "  .. %s\n", ev.Message)
			}
		case domain.EventSuspended:
			return ev.Suspension
		case domain.EventResponse:
			fmt.Fprintln(writer, strings.TrimSpace(ev.Response.Response))
			if len(ev.Response.Citations) > 0 {
				for _, c := range ev.Response.Citations {
					fmt.Fprintf(writer, "  [%d] %s\n", c.ID, c.Title)
				}
			}
		case domain.EventError:
			fmt.Fprintf(writer, "error: %s\n", ev.Err)
		}
	}
	return nil
}

// askUser prompts for the answer to a suspension. An empty line dismisses
// the prompt.
func (r *Runner) askUser(lineReader *bufio.Reader, writer io.Writer, req *domain.SuspensionRequest) (domain.Resume, error) {
	fmt.Fprintln(writer, req.Message)
	for i, opt := range req.Options {
		fmt.Fprintf(writer, "  %d) %s\n", i+1, opt.Label)
	}
	fmt.Fprint(writer, "? ")

	text, err := lineReader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return domain.Cancel(), nil
		}
		return domain.Resume{}, fmt.Errorf("input error: %w", err)
	}
	answer := strings.TrimSpace(text)
	if answer == "" {
		return domain.Cancel(), nil
	}

	// A menu number picks the option; anything else passes through verbatim.
	if len(req.Options) > 0 {
		var idx int
		if _, err := fmt.Sscanf(answer, "%d", &idx); err == nil && idx >= 1 && idx <= len(req.Options) {
			return domain.Resume{Value: req.Options[idx-1].ID}, nil
		}
	}
	return domain.Resume{Value: answer}, nil
}
