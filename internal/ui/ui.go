// Package ui implements the interactive terminal prompts: menus, confirms,
// and hidden password input.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ANSI escape sequences used for terminal output.
const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
	white  = "\033[37m"
)

// UI reads prompts from in and writes to out. NoColor strips the ANSI codes
// for non-terminal output.
type UI struct {
	in      *bufio.Reader
	out     io.Writer
	NoColor bool

	// passwordFd is the file descriptor used for hidden reads; -1 falls
	// back to plain line input (pipes, tests).
	passwordFd int
}

// New creates a UI on stdin/stdout with hidden password input when stdin is
// a terminal.
func New() *UI {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fd = -1
	}
	return &UI{
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		passwordFd: fd,
	}
}

// NewWithStreams creates a UI on explicit streams, used in tests.
func NewWithStreams(in io.Reader, out io.Writer) *UI {
	return &UI{
		in:         bufio.NewReader(in),
		out:        out,
		NoColor:    true,
		passwordFd: -1,
	}
}

func (u *UI) color(code, s string) string {
	if u.NoColor {
		return s
	}
	return code + s + reset
}

// Banner prints the tool header.
func (u *UI) Banner() {
	fmt.Fprintln(u.out)
	fmt.Fprintln(u.out, u.color(cyan, "  F A R E W E L L"))
	fmt.Fprintln(u.out, u.color(yellow, "  Claimer Helper - ZK-Email Proof Generator"))
	fmt.Fprintln(u.out)
}

// Section prints a section header.
func (u *UI) Section(title string) {
	line := strings.Repeat("-", 60)
	fmt.Fprintf(u.out, "\n%s\n  %s\n%s\n\n", u.color(cyan, line), u.color(cyan, title), u.color(cyan, line))
}

// Success prints a success line.
func (u *UI) Success(format string, args ...any) {
	fmt.Fprintln(u.out, u.color(green, "+ "+fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (u *UI) Error(format string, args ...any) {
	fmt.Fprintln(u.out, u.color(red, "x "+fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (u *UI) Warn(format string, args ...any) {
	fmt.Fprintln(u.out, u.color(yellow, "! "+fmt.Sprintf(format, args...)))
}

// Info prints an informational line.
func (u *UI) Info(format string, args ...any) {
	fmt.Fprintln(u.out, u.color(blue, "i "+fmt.Sprintf(format, args...)))
}

// Prompt asks for a line of input, returning the default when the answer is
// empty. A closed input stream is an error.
func (u *UI) Prompt(msg, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(u.out, "%s [%s]: ", u.color(white, msg), u.color(cyan, def))
	} else {
		fmt.Fprintf(u.out, "%s: ", u.color(white, msg))
	}
	line, err := u.in.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" && err != nil {
		return "", fmt.Errorf("input closed: %w", err)
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// Password asks for a secret without echoing when the input is a terminal.
func (u *UI) Password(msg string) (string, error) {
	fmt.Fprintf(u.out, "%s: ", u.color(white, msg))
	if u.passwordFd >= 0 {
		b, err := term.ReadPassword(u.passwordFd)
		fmt.Fprintln(u.out)
		if err == nil {
			return string(b), nil
		}
	}
	line, err := u.in.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" && err != nil {
		return "", fmt.Errorf("input closed: %w", err)
	}
	return line, nil
}

// Select displays numbered options and returns the chosen index. Invalid
// answers re-prompt; a closed input stream is an error.
func (u *UI) Select(title string, options []string) (int, error) {
	fmt.Fprintln(u.out, u.color(white, title))
	for i, opt := range options {
		fmt.Fprintf(u.out, "  %s %s\n", u.color(cyan, strconv.Itoa(i+1)+"."), opt)
	}

	for {
		answer, err := u.Prompt("Enter your choice", "")
		if err != nil {
			return 0, err
		}
		choice, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil {
			u.Error("Please enter a valid number")
			continue
		}
		if choice < 1 || choice > len(options) {
			u.Error("Please enter a number between 1 and %d", len(options))
			continue
		}
		return choice - 1, nil
	}
}

// Confirm asks a yes/no question.
func (u *UI) Confirm(msg string, def bool) (bool, error) {
	suffix := "[y/N]"
	if def {
		suffix = "[Y/n]"
	}
	answer, err := u.Prompt(msg+" "+suffix, "")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	if answer == "" {
		return def, nil
	}
	return answer == "y" || answer == "yes", nil
}

// ReadMultiline collects lines until the first empty one. End of input also
// ends collection, keeping a final unterminated line.
func (u *UI) ReadMultiline(prompt string) string {
	u.Info("%s", prompt)
	var lines []string
	for {
		line, err := u.in.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			lines = append(lines, line)
		}
		if line == "" || err != nil {
			break
		}
	}
	return strings.Join(lines, "\n")
}
