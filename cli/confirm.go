package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm prompts on out and reads one line from in. Only an explicit
// "y" or "yes" (any case) proceeds; empty input and everything else
// declines.
func confirm(in io.Reader, out io.Writer, message string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", message)

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}
