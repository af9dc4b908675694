package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCleanCmd reports the manifest's declared clean targets without
// removing anything; actual removal is left to an external helper.
func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "List the manifest's declared clean targets (removal is delegated to an external helper)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			if len(cfg.Clean) == 0 {
				fmt.Println("no clean targets declared")
				return nil
			}
			for _, target := range cfg.Clean {
				fmt.Println(target)
			}
			return nil
		},
	}
}
