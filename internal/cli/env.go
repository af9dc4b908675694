package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newEnvCmd prints the assembled environment and, for each key, the chain
// of sources that produced its final value (base manifest, each applied
// overlay, .env, dynamic resolution), tracing the Provenance built up by
// config.Load.
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the assembled environment and each variable's provenance chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(cfg.Env))
			for k := range cfg.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			defer w.Flush()
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\n", k, cfg.Env[k])
				for _, entry := range cfg.Provenance[k] {
					fmt.Fprintf(w, "  from\t%s = %s\n", entry.Source, entry.Value)
				}
			}
			return nil
		},
	}
}
