package main

import (
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/forumbridge/internal/adapter/driving/discord"
)

func newRegisterCommandsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register-commands",
		Short: "Register the bug report message commands in the configured guild and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			gateway, err := discord.NewGateway(cfg.Discord.Token, cfg.Discord.GuildID, logger)
			if err != nil {
				return err
			}
			return gateway.RegisterCommands(cmd.Context())
		},
	}
}
