package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"
)

const (
	envPassphrase       = "LOCKBOX_PASSPHRASE"
	envExportPassphrase = "LOCKBOX_EXPORT_PASSPHRASE"
)

var errPassphraseMismatch = errors.New("passphrases do not match")

// readPassword reads a line from the terminal without echo. Tests replace it.
var readPassword = func() ([]byte, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal")
	}
	return term.ReadPassword(fd)
}

// passphrase returns the value of envVar when set and otherwise prompts on w
// with echo disabled.
func passphrase(w io.Writer, prompt, envVar string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	fmt.Fprintf(w, "%s (input hidden): ", prompt)
	b, err := readPassword()
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading passphrase (or set %s): %w", envVar, err)
	}
	return string(b), nil
}

// newPassphrase is passphrase with a confirmation prompt. The environment
// variable is trusted without confirmation.
func newPassphrase(w io.Writer, prompt, envVar string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	first, err := passphrase(w, prompt, envVar)
	if err != nil {
		return "", err
	}
	second, err := passphrase(w, "Confirm", envVar)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPassphraseMismatch
	}
	return first, nil
}
