package recorder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// CommandKind identifies a control command.
type CommandKind int

const (
	CmdOpen CommandKind = iota + 1
	CmdStart
	CmdStop
)

func (k CommandKind) String() string {
	switch k {
	case CmdOpen:
		return "open"
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Command is a parsed control message.
type Command struct {
	Kind CommandKind
	// Name is the file argument of open. Empty means prompt.
	Name string
}

// ParseCommand parses one control line. Accepted forms are "open [name]",
// "start", "stop" and a number, where a non-zero number starts and zero stops.
// The file name keeps inner spaces.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}

	word, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(word) {
	case "open":
		return Command{Kind: CmdOpen, Name: strings.TrimSpace(rest)}, nil
	case "start":
		return Command{Kind: CmdStart}, nil
	case "stop":
		return Command{Kind: CmdStop}, nil
	}

	if rest == "" {
		if v, err := strconv.ParseFloat(word, 64); err == nil {
			if v != 0 {
				return Command{Kind: CmdStart}, nil
			}
			return Command{Kind: CmdStop}, nil
		}
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
}

// Apply runs cmd against the session.
func (s *Session) Apply(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CmdOpen:
		return s.Open(ctx, cmd.Name)
	case CmdStart:
		return s.Start(ctx)
	case CmdStop:
		s.Stop()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
	}
}
