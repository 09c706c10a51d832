package report

import (
	"fmt"
	"os"
	"strings"
)

// AppendOutput appends key=value to a CI output file such as $GITHUB_OUTPUT.
// An empty path is a no-op.
func AppendOutput(path, key, value string) error {
	if path == "" {
		return nil
	}
	if strings.ContainsAny(key+value, "\r\n") {
		return fmt.Errorf("output %q contains a newline", key)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
