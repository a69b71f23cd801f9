package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sqwatch version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalOpts.JSON {
				enc := json.NewEncoder(os.Stdout)
				return enc.Encode(map[string]any{"ok": true, "version": Version})
			}
			fmt.Printf("sqwatch %s\n", Version)
			return nil
		},
	}
}
