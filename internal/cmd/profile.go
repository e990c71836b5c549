package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateProfileCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "profile [name]",
		Short: "Show or switch the AWS profile and verify its credentials",
		Long: `Show or switch the AWS profile and verify its credentials.
A profile passed as an argument is saved and used by later sessions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := manager.SetProfile(ctx, args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintf(f.stdout(), "Profile: %s\n", manager.Profile())
			identity, err := manager.VerifyCredentials(ctx)
			if err != nil {
				return err
			}
			printMessageWithData(f.stdout(), "Caller identity:\n", identity)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateProfileCommand(flgs)
	setDefaultFlags(c, flgs)
	root.AddCommand(c)
}
