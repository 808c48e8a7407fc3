package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/timing/config"
)

func newConfigCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "config [path]",
		Short: "Write the default machine configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultMachineConfig()
			if len(args) == 1 {
				return cfg.SaveConfig(args[0])
			}

			data, err := cfg.Marshal(asYAML)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Write YAML instead of JSON to stdout")
	return cmd
}
