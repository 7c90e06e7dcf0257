package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	var opts options

	root := &cobra.Command{
		Use:           "consertja-chat",
		Short:         "ConsertJá messages in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.sessionPath, "session", "", "session directory (defaults to SESSION_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	root.AddCommand(
		newLoginCmd(&opts),
		newLogoutCmd(&opts),
		newWhoamiCmd(&opts),
		newUnreadCmd(&opts),
		newChatsCmd(&opts),
		newOpenCmd(&opts),
		newProvidersCmd(&opts),
		newReviewsCmd(&opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Erro: %v", err))
		os.Exit(1)
	}
}
