package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateServeCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  `Run the HTTP API server. It stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.RunServer(context.Background(), flgs)
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateServeCommand(flgs)
	setDefaultFlags(c, flgs)
	c.Flags().StringVar(&flgs.Addr, flagMap.Addr.Name, flagMap.Addr.Value, flagMap.Addr.Usage)
	root.AddCommand(c)
}
