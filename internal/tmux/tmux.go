package tmux

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var execCommand = exec.Command

// IsTmuxAvailable checks if tmux is installed and accessible
func IsTmuxAvailable() bool {
	cmd := execCommand("tmux", "-V")
	return cmd.Run() == nil
}

// IsInsideTmux returns true if we're currently inside a tmux session
func IsInsideTmux() bool {
	return os.Getenv("TMUX") != ""
}

// CurrentSession returns the name of the session this process runs in.
func CurrentSession() (string, error) {
	cmd := execCommand("tmux", "display-message", "-p", "#S")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tmux display-message: %w", err)
	}
	session := strings.TrimSpace(string(output))
	if session == "" {
		return "", fmt.Errorf("tmux reported no session")
	}
	return session, nil
}

// NewWindow creates a new window in an existing session
func NewWindow(session, name, workDir, command string) error {
	args := []string{"new-window", "-t", session}
	if name != "" {
		args = append(args, "-n", name)
	}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}

	cmd := execCommand("tmux", args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return err
	}

	if command != "" {
		target := session
		if name != "" {
			target = session + ":" + name
		}
		return SendKeys(target, command)
	}

	return nil
}

// SendKeys types command into target and presses Enter.
func SendKeys(target, command string) error {
	cmd := execCommand("tmux", "send-keys", "-t", target, command, "Enter")
	return cmd.Run()
}

// OpenWindow runs argv in a new window of the current session.
func OpenWindow(name string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("tmux: empty command")
	}
	session, err := CurrentSession()
	if err != nil {
		return err
	}
	return NewWindow(session, name, "", JoinArgs(argv))
}

// JoinArgs quotes argv into a single shell command line.
func JoinArgs(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		if arg != "" && !strings.ContainsAny(arg, " \t\n\"'`$\\|&;<>()*?[]{}#~") {
			quoted[i] = arg
			continue
		}
		quoted[i] = doubleQuote(arg)
	}
	return strings.Join(quoted, " ")
}

// doubleQuote wraps a string in double quotes, escaping special characters.
func doubleQuote(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "`", "\\`")
	s = strings.ReplaceAll(s, "$", "\\$")
	return "\"" + s + "\""
}
