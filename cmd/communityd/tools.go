package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-community/app"
	"github.com/goliatone/go-community/auth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func openapiCmd(flags *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(cmd.Context(), flags.configPath)
			if err != nil {
				return err
			}
			doc, err := app.Document(cfg, app.Version)
			if err != nil {
				return err
			}

			var out []byte
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "json":
				out, err = json.MarshalIndent(doc, "", "  ")
			case "yaml", "yml":
				out, err = yaml.Marshal(doc)
			default:
				return fmt.Errorf("unsupported format %q, use json or yaml", format)
			}
			if err != nil {
				return fmt.Errorf("encode openapi document: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash of a service API key",
		Long: `Print the bcrypt hash of a service API key for auth.service_api_key_hashes.

Example:
  communityd hash-key "$(openssl rand -hex 24)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}
}
