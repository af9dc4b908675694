package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <task>",
		Short: "Print a task's resolved dependency order, without running anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, runner, err := bootstrap()
			if err != nil {
				return err
			}
			order, err := runner.ResolveOrder(args[0])
			if err != nil {
				return err
			}
			for _, name := range order {
				fmt.Println(name)
			}
			return nil
		},
	}
}
