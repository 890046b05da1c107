package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/pgoslatara/misstea/internal/llmtools"
)

func newToolsCmd(f *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the OpenAI-compatible tool definitions offered to language models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return writeJSON(cmd.OutOrStdout(), llmtools.EncodeTools(a.Tools().Specs()), true)
		},
	}
	cmd.AddCommand(newToolsCallCmd(f))
	return cmd
}

func newToolsCallCmd(f *globalFlags) *cobra.Command {
	var fromResponse string
	cmd := &cobra.Command{
		Use:   "call <name> [json-arguments]",
		Short: "Invoke a tool with JSON arguments and print its result",
		Long: "Invokes one tool directly, or with --from-response runs every tool call found in a saved " +
			"chat completion response and prints the resulting tool messages.",
		Args: func(cmd *cobra.Command, args []string) error {
			if fromResponse != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if fromResponse != "" {
				resp, err := readChatResponse(cmd, fromResponse)
				if err != nil {
					return err
				}
				calls := llmtools.ParseToolCalls(resp)
				if len(calls) == 0 {
					return fmt.Errorf("no tool calls in %s", fromResponse)
				}
				return writeJSON(cmd.OutOrStdout(), llmtools.RunToolCalls(cmd.Context(), a.Tools(), calls), true)
			}
			var raw json.RawMessage
			if len(args) == 2 {
				raw = json.RawMessage(args[1])
			}
			out, err := a.Tools().Invoke(cmd.Context(), args[0], raw)
			if err != nil {
				return fmt.Errorf("tool %s: %w", args[0], err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&fromResponse, "from-response", "", "Chat completion response JSON file whose tool calls to run (- for stdin)")
	return cmd
}

func readChatResponse(cmd *cobra.Command, path string) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return resp, fmt.Errorf("open response: %w", err)
		}
		defer file.Close()
		r = file
	}
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode chat completion response: %w", err)
	}
	return resp, nil
}
