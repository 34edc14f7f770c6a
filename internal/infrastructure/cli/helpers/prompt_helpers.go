package helpers

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadLine prints prompt and returns the entered line without its newline.
// Leading and trailing spaces are kept; io.EOF on an empty read is returned.
func ReadLine(out io.Writer, reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PromptForYesNo asks a y/N question; an empty answer returns defaultValue.
func PromptForYesNo(out io.Writer, reader *bufio.Reader, promptText string, defaultValue bool) (bool, error) {
	label := "y/N"
	if defaultValue {
		label = "Y/n"
	}
	line, err := ReadLine(out, reader, fmt.Sprintf("%s [%s]: ", promptText, label))
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return defaultValue, nil
	}
	return line == "y" || line == "yes", nil
}

// PrintWarnings outputs a list of warning messages to the writer
func PrintWarnings(out io.Writer, warnings []string) {
	for _, warning := range warnings {
		warning = strings.TrimSpace(warning)
		if warning == "" {
			continue
		}
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
}
