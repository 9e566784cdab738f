package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adoptiq/internal/config"
)

// --- templates ---

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List supported question templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/ai/templates")
		if err != nil {
			return err
		}

		var body struct {
			Templates []struct {
				ID          string   `json:"id"`
				Description string   `json:"description"`
				Category    string   `json:"category"`
				Examples    []string `json:"examples"`
			} `json:"templates"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}

		for _, t := range body.Templates {
			fmt.Printf("%s  %s\n", colorize(colorBold, t.ID), colorize(colorCyan, "["+t.Category+"]"))
			fmt.Printf("  %s\n", t.Description)
			for _, ex := range t.Examples {
				fmt.Printf("    e.g. %q\n", ex)
			}
		}
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show engine statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/ai/stats")
		if err != nil {
			return err
		}

		var stats any
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, kv := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, kv.Key), kv.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
