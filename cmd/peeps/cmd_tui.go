package main

import (
	"mypeeps/internal/app"
	"mypeeps/internal/memory"
	"mypeeps/internal/tui"

	"github.com/spf13/cobra"
)

var offline bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive interface",
	Long: `Open the interactive interface.

With --offline nothing is sent to a server: accounts, people and groups live
in memory and are gone when the program exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if offline {
			a := app.New(app.Config{
				Identity: memory.NewIdentity(),
				Store:    memory.NewStore(),
				Uploader: uploader(clientCfg),
			})
			defer a.Close()
			return tui.Run(cmd.Context(), a)
		}

		s, err := open(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()
		return tui.Run(cmd.Context(), s.app)
	},
}

func init() {
	tuiCmd.Flags().BoolVar(&offline, "offline", false, "keep everything in memory instead of talking to a server")
}
