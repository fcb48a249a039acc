package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/costwise/costwise/client"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Route and estimate a task, optionally executing it",
	Long: `Route and estimate a task against a running costwise server.
Without --execute this is a dry run: the task is routed and priced but
no provider is called.`,
	Example: `
# Estimate only (no money spent)
costwise run -p "Summarize the attached report" -l 2

# Execute for real
costwise run -p "Summarize the attached report" -l 2 --execute

# Read the prompt from a file, save the full result
costwise run -f prompt.txt -o result.json --execute
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := taskInputFromFlags(cmd)
		if err != nil {
			return err
		}
		in.Execute, _ = cmd.Flags().GetBool("execute")

		res, err := apiClient(cmd).Run(cmd.Context(), in)
		if res != nil {
			printRun(res)
			if path, _ := cmd.Flags().GetString("output-file"); path != "" {
				if werr := saveResult(path, res); werr != nil {
					return werr
				}
				fmt.Printf("Result saved to %s\n", path)
			}
		}
		return translateErr(err)
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Price a task without executing or logging it",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := taskInputFromFlags(cmd)
		if err != nil {
			return err
		}

		res, err := apiClient(cmd).Estimate(cmd.Context(), in)
		if err != nil {
			return translateErr(err)
		}
		printRun(res)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, estimateCmd} {
		c.Flags().StringP("prompt", "p", "", "Inline prompt text")
		c.Flags().StringP("input-file", "f", "", "Read prompt from file")
		c.Flags().IntP("tokens", "t", 100, "Expected output tokens")
		c.Flags().IntP("level", "l", 1, "Task complexity (1-3)")
		c.Flags().StringP("model", "m", "", "Override router model")
		c.Flags().Float64P("budget", "b", 0, "Per-call budget override")
		c.Flags().String("tenant", "", "Tenant ID recorded with the run")
		c.Flags().String("caller", "", "Caller ID recorded with the run")
	}
	runCmd.Flags().BoolP("execute", "e", false, "Actually call the LLM API (costs money)")
	runCmd.Flags().StringP("output-file", "o", "", "Save result JSON to file")
}

func taskInputFromFlags(cmd *cobra.Command) (client.TaskInput, error) {
	prompt, _ := cmd.Flags().GetString("prompt")
	inputFile, _ := cmd.Flags().GetString("input-file")

	text := prompt
	if inputFile != "" {
		raw, err := os.ReadFile(inputFile)
		if err != nil {
			return client.TaskInput{}, fmt.Errorf("read %s: %w", inputFile, err)
		}
		text = string(raw)
	}
	if text == "" {
		return client.TaskInput{}, errors.New("provide --prompt or --input-file")
	}

	level, _ := cmd.Flags().GetInt("level")
	tokens, _ := cmd.Flags().GetInt("tokens")
	model, _ := cmd.Flags().GetString("model")
	tenant, _ := cmd.Flags().GetString("tenant")
	caller, _ := cmd.Flags().GetString("caller")

	in := client.TaskInput{
		InputText: text,
		Level:     level,
		Tokens:    tokens,
		Model:     model,
		TenantID:  tenant,
		CallerID:  caller,
	}
	if cmd.Flags().Changed("budget") {
		b, _ := cmd.Flags().GetFloat64("budget")
		in.Budget = &b
	}
	return in, nil
}

func printRun(res *client.Run) {
	if res.Summary != "" {
		fmt.Println(res.Summary)
		return
	}
	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}

func saveResult(path string, res *client.Run) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// translateErr turns transport errors into a hint that the server is
// not running. API errors pass through unchanged.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return fmt.Errorf("cannot reach the costwise server (is 'costwise serve' running?): %w", err)
}
