package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"adoptiq/internal/answer"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a natural-language question about adoption data",
	Long: `Ask a natural-language question about adoption data.

Examples:
  adoptiq ask "Show me all products"
  adoptiq ask --role CSS "Which customers have adoption below 50%?"
  adoptiq ask --json "How many tasks are there?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		userID, _ := cmd.Flags().GetString("user")
		role, _ := cmd.Flags().GetString("role")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/ai/ask", answer.Request{
			Question: question,
			UserID:   userID,
			UserRole: role,
		})
		if err != nil {
			return err
		}

		var result answer.Response
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		if result.Error != "" {
			printError("%s", result.Error)
		}
		fmt.Println(result.Answer)

		if len(result.Suggestions) > 0 {
			fmt.Println()
			fmt.Println(colorize(colorBold, "Try next:"))
			for _, s := range result.Suggestions {
				fmt.Printf("  - %s\n", s)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("user", "cli-user", "user identifier sent with the question")
	askCmd.Flags().String("role", "ADMIN", "user role: ADMIN, SME, CSS, USER, or VIEWER")
	askCmd.Flags().Bool("json", false, "print the raw JSON response")
}
