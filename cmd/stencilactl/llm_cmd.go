package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stencilacore/llm"
	"stencilacore/llm/anthropic"
)

func newLLMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Call a provider directly, bypassing the pipeline engine",
	}
	cmd.AddCommand(newLLMCompleteCmd())
	return cmd
}

func newLLMCompleteCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send a single-turn completion request to Anthropic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := os.Getenv("ANTHROPIC_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("ANTHROPIC_API_KEY must be set")
			}
			client := anthropic.NewFromAPIKey(apiKey, anthropic.Options{DefaultModel: model})

			req := &llm.Request{
				Model: model,
				Messages: []*llm.Message{
					{Role: llm.RoleUser, Parts: []llm.ContentPart{llm.TextPart{Text: args[0]}}},
				},
				MaxTokens: 1024,
			}
			resp, err := client.Complete(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("completion failed: %w", err)
			}
			for _, part := range resp.Message.Parts {
				if t, ok := part.(llm.TextPart); ok {
					fmt.Print(t.Text)
				}
			}
			fmt.Println()
			fmt.Fprintf(os.Stderr, "finish_reason=%s (%s) input_tokens=%d output_tokens=%d\n",
				resp.FinishReason.Reason, resp.FinishReason.Raw, resp.Usage.InputTokens, resp.Usage.OutputTokens)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "claude-3-5-sonnet-latest", "Model id to call")
	return cmd
}
