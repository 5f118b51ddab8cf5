// Package remote executes shell commands and retrieves files on build hosts.
package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
)

// Command is one shell command line, optionally run inside Dir with extra
// environment variables prefixed to it.
type Command struct {
	Dir  string
	Env  map[string]string
	Line string
}

// String renders the command as it is sent to the remote shell.
func (c Command) String() string {
	var b strings.Builder
	if c.Dir != "" {
		b.WriteString("cd ")
		b.WriteString(shellescape.Quote(c.Dir))
		b.WriteString(" && ")
	}
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(shellescape.Quote(c.Env[k]))
		b.WriteByte(' ')
	}
	b.WriteString(c.Line)
	return b.String()
}

// Shell builds a Command from a program and arguments, quoting every argument.
func Shell(dir string, argv ...string) Command {
	return Command{Dir: dir, Line: shellescape.QuoteCommand(argv)}
}

// Runner runs commands on one build host and copies files back from it.
type Runner interface {
	// Host identifies the target for logging.
	Host() string
	// Run executes cmd and returns its standard output.
	Run(ctx context.Context, cmd Command) (string, error)
	// Get copies remotePath to localPath, returning the number of bytes written.
	Get(ctx context.Context, remotePath, localPath string) (int64, error)
	Close() error
}

// CommandError reports a command that ran but exited non-zero.
type CommandError struct {
	Host       string
	Command    string
	ExitStatus int
	Stderr     string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: command %q exited with status %d", e.Host, e.Command, e.ExitStatus)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
