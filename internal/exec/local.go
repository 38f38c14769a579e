// Package exec runs responder commands through the local shell.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rileyhilliard/ramwatch/internal/errors"
)

// Result is the outcome of a command that started.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Shell returns $SHELL, or /bin/sh when unset.
func Shell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// Run executes cmd with the user's shell, streaming output to the provided
// writers. env entries are KEY=VALUE pairs added to the current environment.
// A non-zero exit is reported through exitCode, not err; err means the
// command could not run at all or ctx ended first.
func Run(ctx context.Context, cmd string, env []string, stdout, stderr io.Writer) (exitCode int, err error) {
	command := exec.CommandContext(ctx, Shell(), "-c", cmd)
	command.Env = append(os.Environ(), env...)
	command.Stdout = stdout
	command.Stderr = stderr

	runErr := command.Run()
	if runErr == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, errors.WrapWithCode(ctx.Err(), errors.ErrResponder,
			fmt.Sprintf("Command %q was interrupted", cmd),
			"")
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, errors.WrapWithCode(runErr, errors.ErrResponder,
		"Couldn't run the command locally",
		"Make sure the command exists and is executable.")
}

// Capture runs cmd like Run and collects its output.
func Capture(ctx context.Context, cmd string, env []string) (Result, error) {
	var stdout, stderr bytes.Buffer
	code, err := Run(ctx, cmd, env, &stdout, &stderr)
	return Result{ExitCode: code, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}

// Check turns a captured non-zero exit into an error, naming the missing
// executable when the shell reports one.
func Check(cmd string, res Result) error {
	if res.ExitCode == 0 {
		return nil
	}
	stderr := strings.TrimSpace(string(res.Stderr))
	if name, ok := IsCommandNotFound(stderr, res.ExitCode); ok {
		if name == "" {
			name = firstWord(cmd)
		}
		return errors.New(errors.ErrResponder,
			fmt.Sprintf("'%s' not found in PATH", name),
			"Install it, or use an absolute path in the config.")
	}
	msg := fmt.Sprintf("Command %q exited with code %d", cmd, res.ExitCode)
	if stderr != "" {
		msg += ": " + stderr
	}
	return errors.New(errors.ErrResponder, msg, "")
}

// commandNotFoundPatterns detect "command not found" from various shells.
// These require exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// IsCommandNotFound checks if the error output indicates a missing command.
// Returns the command name (if extractable) and whether it's a command-not-found error.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != 127 {
		return "", false
	}
	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}
	return "", true
}

func firstWord(cmd string) string {
	if parts := strings.Fields(cmd); len(parts) > 0 {
		return parts[0]
	}
	return "command"
}
