package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/bambu-link/bambu-go/pkg/session"
	"github.com/bambu-link/bambu-go/pkg/state"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

// printer is the part of session.Session the shell drives.
type printer interface {
	Status() session.Status
	State() *state.State
	Get(path string) (any, bool)
	Pending() int
	Refresh(ctx context.Context) error
	SendTimeout(ctx context.Context, cmd wire.Command, timeout time.Duration) (*wire.Message, error)
}

var _ printer = (*session.Session)(nil)

// Shell is the interactive command loop.
type Shell struct {
	printer   printer
	timeout   time.Duration
	rl        *readline.Instance
	out       io.Writer
	closeOnce sync.Once
}

// NewShell creates a shell reading from the terminal. The printer is
// attached before Run.
func NewShell(timeout time.Duration) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bambu> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{timeout: timeout, rl: rl, out: rl.Stdout()}, nil
}

func completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("status"),
		readline.PcItem("state"),
		readline.PcItem("get"),
		readline.PcItem("refresh"),
		readline.PcItem("quit"),
	}
	verbs := make([]string, 0, len(printerCommands))
	for verb := range printerCommands {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	for _, verb := range verbs {
		items = append(items, readline.PcItem(verb))
	}
	return readline.NewPrefixCompleter(items...)
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Close releases the terminal.
func (s *Shell) Close() {
	s.closeOnce.Do(func() { _ = s.rl.Close() })
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if s.execute(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// execute runs one command line and reports whether the shell should exit.
func (s *Shell) execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	verb := strings.ToLower(parts[0])
	args := parts[1:]

	switch verb {
	case "help", "?":
		s.printHelp()
	case "status":
		s.cmdStatus()
	case "state", "s":
		s.cmdState()
	case "get", "g":
		s.cmdGet(args)
	case "refresh", "pushall":
		s.cmdRefresh(ctx)
	case "quit", "exit", "q":
		return true
	default:
		s.cmdSend(ctx, verb, args)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Printer Commands:
  State:
    status                   - Show connection status
    state                    - Print the full reconciled state
    get <path>               - Read one field, e.g. get temps.nozzle
    refresh                  - Request a full status report

  Control:`)
	verbs := make([]string, 0, len(printerCommands))
	for verb := range printerCommands {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	for _, verb := range verbs {
		fmt.Fprintf(s.out, "    %s\n", printerCommands[verb].usage)
	}
	fmt.Fprintln(s.out, `
  Other:
    help                     - Show this help
    quit                     - Exit`)
}

func (s *Shell) cmdStatus() {
	fmt.Fprintf(s.out, "Status:  %s\n", s.printer.Status())
	fmt.Fprintf(s.out, "Pending: %d\n", s.printer.Pending())
}

func (s *Shell) cmdState() {
	s.printJSON(s.printer.State())
}

func (s *Shell) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: get <path>")
		return
	}
	v, ok := s.printer.Get(args[0])
	if !ok {
		fmt.Fprintf(s.out, "%s: not reported\n", args[0])
		return
	}
	s.printJSON(v)
}

func (s *Shell) cmdRefresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.printer.Refresh(ctx); err != nil {
		fmt.Fprintf(s.out, "Refresh failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Full state received")
}

func (s *Shell) cmdSend(ctx context.Context, verb string, args []string) {
	cmd, err := buildCommand(verb, args)
	if err != nil {
		fmt.Fprintf(s.out, "%v (type 'help' for commands)\n", err)
		return
	}
	reply, err := s.printer.SendTimeout(ctx, cmd, s.timeout)
	if err != nil {
		fmt.Fprintf(s.out, "%s failed: %v\n", cmd.Name, err)
		return
	}
	fmt.Fprintf(s.out, "%s: %s\n", cmd.Name, reply.Payload)
}

func (s *Shell) printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, string(data))
}
