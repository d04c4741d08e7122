package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readSecret reads one value from in. A terminal is read without echo after
// printing a prompt; anything else is read up to the first newline. An empty
// value is ErrMissingArgument in both cases.
func readSecret(in io.Reader, prompt io.Writer, what string) (string, error) {
	var value string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if _, err := fmt.Fprintf(prompt, "Enter %s: ", what); err != nil {
			return "", fmt.Errorf("failed to prompt for %s: %w", what, err)
		}
		b, err := term.ReadPassword(int(f.Fd()))
		if _, perr := fmt.Fprintln(prompt); perr != nil && err == nil {
			err = perr
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", what, err)
		}
		value = string(b)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read %s: %w", what, err)
		}
		value = strings.TrimRight(line, "\r\n")
	}

	if value == "" {
		return "", fmt.Errorf("%w: no %s on input", ErrMissingArgument, what)
	}
	return value, nil
}
