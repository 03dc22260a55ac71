// Package shell is the interactive front-end: two nested prompts (the board
// prompt and a per-card prompt) dispatching over static command tables. All
// tracker access goes through the jira service and the board resolver; the
// shell itself holds no remote state beyond the last rendered listing.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/interfaces"
)

// errQuit signals the prompt loop to exit. It never reaches the user.
var errQuit = errors.New("quit")

// command is one entry of a prompt's static dispatch table. Aliases are
// fixed at compile time; there is no runtime rebinding.
type command struct {
	name    string
	aliases []string
	help    string
	run     func(ctx context.Context, args []string) error
}

// Shell wires the prompt loops to the tracker services. One Shell serves the
// whole session; card prompts borrow it.
type Shell struct {
	jira     interfaces.JiraService
	resolver interfaces.BoardResolver
	config   *common.Config
	logger   arbor.ILogger

	in  *bufio.Reader
	out io.Writer

	// lastListing is the issue collection produced by the most recent ls,
	// consulted by card-by-number selection and the worklog reports.
	lastListing *issueListing
}

// Option adjusts a Shell at construction.
type Option func(*Shell)

// WithIO redirects the prompt's input and output, used by tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Shell) {
		s.in = bufio.NewReader(in)
		s.out = out
	}
}

// New builds the interactive shell.
func New(jiraService interfaces.JiraService, boardResolver interfaces.BoardResolver, config *common.Config, logger arbor.ILogger, opts ...Option) *Shell {
	s := &Shell{
		jira:     jiraService,
		resolver: boardResolver,
		config:   config,
		logger:   logger,
		in:       bufio.NewReader(stdin()),
		out:      stdout(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) println(args ...any) {
	fmt.Fprintln(s.out, args...)
}

// readLine reads one input line. io.EOF (Ctrl-D) maps to errQuit so both
// prompt loops exit cleanly.
func (s *Shell) readLine(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) != "" {
				return strings.TrimSpace(line), nil
			}
			s.println()
			return "", errQuit
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// prompt asks for one value, returning the default when the user just hits
// enter.
func (s *Shell) prompt(label, defaultValue string) (string, error) {
	display := label
	if defaultValue != "" {
		display = fmt.Sprintf("%s [%s]", label, defaultValue)
	}
	line, err := s.readLine(display + ": ")
	if err != nil {
		return "", err
	}
	if line == "" {
		return defaultValue, nil
	}
	return line, nil
}

// confirm asks a yes/no question. Anything other than an explicit yes is no.
func (s *Shell) confirm(question string) bool {
	line, err := s.readLine(question + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	}
	return false
}

// dispatch finds the command for the first input token and runs it with the
// rest. Unknown commands are reported, not fatal.
func (s *Shell) dispatch(ctx context.Context, commands []command, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	cmd := findCommand(commands, name)
	if cmd == nil {
		s.printf("Unknown command '%s'. Use 'help' to list commands.\n", name)
		return nil
	}

	commandID := common.NewCommandID()
	log := s.logger.WithCorrelationId(commandID)
	log.Debug().Str("command", cmd.name).Str("args", strings.Join(args, " ")).Msg("dispatching command")

	err := cmd.run(ctx, args)
	if err != nil && !errors.Is(err, errQuit) {
		log.Warn().Err(err).Str("command", cmd.name).Msg("command failed")
		s.printf("Error: %v\n", err)
		return nil
	}
	return err
}

func findCommand(commands []command, name string) *command {
	lower := strings.ToLower(name)
	for i := range commands {
		if commands[i].name == lower {
			return &commands[i]
		}
		for _, alias := range commands[i].aliases {
			if alias == lower {
				return &commands[i]
			}
		}
	}
	return nil
}

// printCommands renders the help listing for a prompt's command table.
func (s *Shell) printCommands(commands []command) {
	for _, cmd := range commands {
		short := ""
		if len(cmd.aliases) > 0 {
			short = cmd.aliases[0]
		}
		s.printf("  %5s / %-15s %s\n", short, cmd.name, cmd.help)
	}
}

// selectFrom presents a numbered list and reads a selection: a number picks
// an entry, any other text is taken verbatim, blank takes the default.
func (s *Shell) selectFrom(title string, items []string, defaultValue string) (string, error) {
	if len(items) == 0 {
		return s.prompt(title, defaultValue)
	}

	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)

	if picked, err := s.pick(title, sorted); err == nil && picked != "" {
		return picked, nil
	}

	s.println(title + ":")
	for i, item := range sorted {
		s.printf("  %d) %s\n", i+1, item)
	}
	for {
		line, err := s.prompt("Enter name or number", defaultValue)
		if err != nil {
			return "", err
		}
		if line == "" {
			continue
		}
		if n, ok := parseNumber(line); ok {
			if n >= 1 && n <= len(sorted) {
				return sorted[n-1], nil
			}
			s.println("Invalid number")
			continue
		}
		return line, nil
	}
}

func parseNumber(text string) (int, bool) {
	n := 0
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if text == "" {
		return 0, false
	}
	return n, true
}
