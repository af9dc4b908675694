package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks declared in the assembled configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(cfg.Tasks))
			for name := range cfg.Tasks {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			defer w.Flush()
			for _, name := range names {
				t := cfg.Tasks[name]
				desc := t.Description
				if desc == "" {
					desc = "-"
				}
				fmt.Fprintf(w, "%s\t%s\n", name, desc)
				if verbose {
					if len(t.Deps) > 0 {
						fmt.Fprintf(w, "  deps\t%s\n", strings.Join(t.Deps, ", "))
					}
					if len(t.Sources) > 0 {
						fmt.Fprintf(w, "  sources\t%s\n", strings.Join(t.Sources, ", "))
					}
					if len(t.Outputs) > 0 {
						fmt.Fprintf(w, "  outputs\t%s\n", strings.Join(t.Outputs, ", "))
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "also show dependencies, sources, and outputs per task")
	return cmd
}
