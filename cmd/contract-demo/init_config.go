package main

import (
	"github.com/spf13/cobra"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/log"
)

const (
	flagOut = "out"

	defaultConfigDir  = "~/.wasmledger"
	defaultConfigFile = defaultConfigDir + "/config.yml"
)

func InitConfigCmd() *cobra.Command {
	var out string

	initCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a commented config template. Existing files are never overwritten",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.NewLogger(config.DefaultLogLevel)

			template := config.NewChainConfig("", "", "", "", "", "")
			if chainName != "" {
				cfg, _, err := loadChainConfig(cmd.Context(), cmd, logger)
				if err != nil {
					return err
				}
				template = cfg
			}

			if out == defaultConfigFile {
				if err := config.CreateDirectoryIfNeeded(defaultConfigDir, logger); err != nil {
					return err
				}
			}
			return config.WriteTemplate(template, out, logger)
		},
	}

	initCmd.Flags().StringVar(&out, flagOut, defaultConfigFile, "Where to write the template")
	return initCmd
}
