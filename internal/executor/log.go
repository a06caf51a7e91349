package executor

import (
	"fmt"
	"os"
)

// writeFile writes step output to path, overwriting any prior content.
func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
