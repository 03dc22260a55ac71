package shell

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/koki-develop/go-fzf"
	"golang.org/x/term"
)

func stdin() io.Reader { return os.Stdin }

func stdout() io.Writer { return os.Stdout }

func stdinFd() int { return int(os.Stdin.Fd()) }

func interactive() bool { return term.IsTerminal(stdinFd()) }

// PromptPassword reads a password from the terminal with echo disabled. The
// prompt goes to stderr so piped stdout stays clean.
func PromptPassword(username string) (string, error) {
	if !interactive() {
		return "", fmt.Errorf("no terminal available to prompt for a password")
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	passwordBytes, err := term.ReadPassword(stdinFd())
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(passwordBytes), nil
}

// pick opens a fuzzy finder over the items. It only engages on a real
// terminal; elsewhere (tests, pipes) it errors so callers fall back to the
// numbered-list prompt.
func (s *Shell) pick(title string, items []string) (string, error) {
	if s.out != os.Stdout {
		return "", fmt.Errorf("not a terminal")
	}
	return Pick(title, items)
}

// Pick opens a fuzzy finder over the items on the terminal. Startup uses it
// to choose between configured boards when none was named on the command
// line.
func Pick(title string, items []string) (string, error) {
	if !interactive() {
		return "", fmt.Errorf("not a terminal")
	}

	finder, err := fzf.New(
		fzf.WithPrompt(title+" > "),
		fzf.WithLimit(1),
	)
	if err != nil {
		return "", err
	}

	idxs, err := finder.Find(items, func(i int) string { return items[i] })
	if err != nil {
		return "", err
	}
	if len(idxs) == 0 {
		return "", nil
	}
	return items[idxs[0]], nil
}

// editorCommand resolves the editor to launch: config, then $EDITOR, then vi.
func (s *Shell) editorCommand() string {
	if s.config != nil && s.config.Editor != "" {
		return s.config.Editor
	}
	if env := os.Getenv("EDITOR"); env != "" {
		return env
	}
	return "vi"
}

// editText round-trips content through the user's editor: write to a temp
// file, launch the editor on the terminal, read the result back with comment
// lines stripped.
func (s *Shell) editText(content string) (string, error) {
	tmp, err := os.CreateTemp("", "tabula-*.yaml")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	editor := s.editorCommand()
	parts := strings.Fields(editor)
	args := append(parts[1:], path)

	cmd := exec.Command(parts[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor '%s' failed: %w", editor, err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read edited file: %w", err)
	}
	return StripComments(string(edited)), nil
}

// StripComments drops lines whose first non-blank character is '#', the
// convention the editor flows use for instructions to the user.
func StripComments(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
