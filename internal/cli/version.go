package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time:
//
//	go build -ldflags "-X genshin-autobot/internal/cli.Version=v1.2.3"
var Version = "0.3.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "genshinbot", Version)
		},
	}
}
