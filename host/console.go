package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// ErrBadConsoleLine is wrapped by ParseConsoleLine failures
var ErrBadConsoleLine = errors.New("host: bad console line")

// ConsoleEngine is an Engine backed by a terminal. Its native encoding is
// UTF-8; sends and log entries are written to out.
type ConsoleEngine struct {
	account int64
	appDir  string
	mu      sync.Mutex
	out     io.Writer
}

// NewConsoleEngine creates a console engine logged in as account
func NewConsoleEngine(account int64, appDir string, out io.Writer) *ConsoleEngine {
	return &ConsoleEngine{account: account, appDir: appDir, out: out}
}

// LoginAccount implements Engine
func (e *ConsoleEngine) LoginAccount(int32) int64 {
	return e.account
}

// AppDirectory implements Engine
func (e *ConsoleEngine) AppDirectory(int32) []byte {
	return []byte(e.appDir)
}

// SendPrivateMessage implements Engine
func (e *ConsoleEngine) SendPrivateMessage(_ int32, to int64, message []byte) error {
	return e.printf("-> private %d: %s\n", to, message)
}

// SendGroupMessage implements Engine
func (e *ConsoleEngine) SendGroupMessage(_ int32, group int64, message []byte) error {
	return e.printf("-> group %d: %s\n", group, message)
}

// SendDiscussMessage implements Engine
func (e *ConsoleEngine) SendDiscussMessage(_ int32, discuss int64, message []byte) error {
	return e.printf("-> discuss %d: %s\n", discuss, message)
}

// AddLog implements Engine
func (e *ConsoleEngine) AddLog(_ int32, _ LogPriority, category, content []byte) error {
	return e.printf("[%s] %s\n", category, content)
}

func (e *ConsoleEngine) printf(format string, args ...interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintf(e.out, format, args...)
	return err
}

// ParseConsoleLine feeds one typed line to callbacks as a host event:
//
//	private <from> <text>
//	group <group> <from> <text>
//	discuss <discuss> <from> <text>
//	admin <group> <operand> set|unset
//	join <group> <from> <operator> [invited]
func ParseConsoleLine(ctx context.Context, cb *Callbacks, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty line", ErrBadConsoleLine)
	}

	kind := fields[0]
	switch kind {
	case "private":
		ids, text, err := idsAndText(line, fields, 1)
		if err != nil {
			return err
		}
		cb.OnPrivateMessage(ctx, ids[0], []byte(text))

	case "group", "discuss":
		ids, text, err := idsAndText(line, fields, 2)
		if err != nil {
			return err
		}
		if kind == "group" {
			cb.OnGroupMessage(ctx, ids[0], ids[1], []byte(text))
		} else {
			cb.OnDiscussMessage(ctx, ids[0], ids[1], []byte(text))
		}

	case "admin":
		if len(fields) != 4 || (fields[3] != "set" && fields[3] != "unset") {
			return fmt.Errorf("%w: usage: admin <group> <operand> set|unset", ErrBadConsoleLine)
		}
		ids, err := parseIDs(fields[1:3])
		if err != nil {
			return err
		}
		cb.OnGroupAdminChanged(ctx, ids[0], ids[1], fields[3] == "set")

	case "join":
		if len(fields) < 4 || len(fields) > 5 || (len(fields) == 5 && fields[4] != "invited") {
			return fmt.Errorf("%w: usage: join <group> <from> <operator> [invited]", ErrBadConsoleLine)
		}
		ids, err := parseIDs(fields[1:4])
		if err != nil {
			return err
		}
		cb.OnGroupMemberIncrease(ctx, ids[0], ids[1], ids[2], len(fields) == 5)

	default:
		return fmt.Errorf("%w: unknown event %q", ErrBadConsoleLine, kind)
	}
	return nil
}

// idsAndText parses n ids after the event name and keeps the rest of the
// line, inner spacing included, as text
func idsAndText(line string, fields []string, n int) ([]int64, string, error) {
	if len(fields) < n+2 {
		return nil, "", fmt.Errorf("%w: %s needs %d id(s) and a message", ErrBadConsoleLine, fields[0], n)
	}
	ids, err := parseIDs(fields[1 : n+1])
	if err != nil {
		return nil, "", err
	}

	rest := strings.TrimSpace(line)
	for i := 0; i <= n; i++ {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[i]))
	}
	return ids, rest, nil
}

func parseIDs(fields []string) ([]int64, error) {
	ids := make([]int64, len(fields))
	for i, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an id", ErrBadConsoleLine, f)
		}
		ids[i] = id
	}
	return ids, nil
}
