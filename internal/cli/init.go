package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const initTemplate = `[project]
name = "%s"
version = "0.1.0"

[env]
EXAMPLE = "value"

[tasks.hello]
cmds = ["echo hello from $EXAMPLE"]
description = "A starter task"
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter p.toml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(globalDir, "p.toml")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			name := filepath.Base(absOrDot(globalDir))
			content := fmt.Sprintf(initTemplate, name)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func absOrDot(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "."
	}
	return abs
}
