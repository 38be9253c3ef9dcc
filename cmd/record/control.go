package record

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tphakala/rawrecord/internal/errors"
	"github.com/tphakala/rawrecord/internal/recorder"
)

const syncTimeout = 5 * time.Second

// controlLoop reads commands line by line from in and applies them to the
// session. It returns errFinished on "quit" or end of input.
func controlLoop(ctx context.Context, session *recorder.Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return err
					}
				default:
				}
				return errFinished
			}
			if done := handleLine(ctx, session, line, out); done {
				return errFinished
			}
		}
	}
}

// handleLine runs one control line and reports whether the loop should end.
func handleLine(ctx context.Context, session *recorder.Session, line string, out io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return false
	case "quit", "exit":
		return true
	case "status":
		printStatus(out, session.Stats())
		return false
	}

	cmd, err := recorder.ParseCommand(line)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return false
	}
	if err := session.Apply(ctx, cmd); err != nil {
		if !errors.Is(err, recorder.ErrPromptCancelled) {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		return false
	}

	// Let the stop notifications print before the next prompt.
	if cmd.Kind == recorder.CmdStop {
		syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()
		if err := session.Sync(syncCtx); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return false
}

func printStatus(out io.Writer, s recorder.Stats) {
	state := "idle"
	if s.Recording {
		state = "recording"
	}
	fmt.Fprintf(out, "status %s file_open=%t samples=%d bytes=%d pending=%d overruns=%d rejected=%d\n",
		state, s.FileOpen, s.SampleCount, s.ByteCount, s.Pending, s.Overruns, s.RejectedBlocks)
}
