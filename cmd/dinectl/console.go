package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is replaced in tests so they never touch a terminal.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

type console struct {
	in  *bufio.Reader
	out io.Writer
	err io.Writer
}

func newConsole(in io.Reader, out, errOut io.Writer) *console {
	return &console{in: bufio.NewReader(in), out: out, err: errOut}
}

// prompt prints label and reads one trimmed line.
func (c *console) prompt(label string) (string, error) {
	fmt.Fprint(c.err, label+": ")
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *console) password() (string, error) {
	fmt.Fprint(c.err, "Password: ")
	pw, err := readPassword()
	fmt.Fprintln(c.err)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (c *console) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
