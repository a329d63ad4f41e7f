package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stencilacore/llm/anthropic"
	"stencilacore/pipeline"
	"stencilacore/pipeline/checkpoint"
	"stencilacore/pipeline/inmem"
)

func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Validate and run pipeline graphs",
	}
	cmd.AddCommand(newPipelineValidateCmd(), newPipelineRunCmd())
	return cmd
}

func newPipelineValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a pipeline graph for structural errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(args[0])
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return fmt.Errorf("invalid pipeline: %w", err)
			}
			fmt.Println("ok:", len(p.Stages), "stages, start =", p.Start)
			return nil
		},
	}
}

func newPipelineRunCmd() *cobra.Command {
	var (
		checkpointDir string
		live          bool
		model         string
	)
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a pipeline to completion against the in-memory engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(args[0])
			if err != nil {
				return err
			}

			eng := inmem.New()
			for agent := range distinctAgents(p) {
				handler, err := stageHandlerFor(agent, live, model)
				if err != nil {
					return err
				}
				if err := eng.RegisterStageHandler(cmd.Context(), agent, handler); err != nil {
					return fmt.Errorf("register handler for %q: %w", agent, err)
				}
			}

			events := make(chan pipeline.Event, 64)
			go func() {
				for ev := range events {
					fmt.Printf("[%s] %s\n", ev.RunID(), ev.Type())
				}
			}()

			req := pipeline.RunStartRequest{
				ID:       pipeline.NewRunID(),
				Pipeline: p,
				Events:   events,
			}
			if checkpointDir != "" {
				req.Checkpoints = checkpoint.NewFileStore(checkpointDir)
			}

			handle, err := eng.StartRun(cmd.Context(), req)
			if err != nil {
				close(events)
				return err
			}
			outcome, err := handle.Wait(cmd.Context())
			close(events)
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}
			fmt.Println("outcome:", outcome.Status, outcome.PreferredLabel)
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory to persist checkpoints (disabled if empty)")
	cmd.Flags().BoolVar(&live, "live", false, "Call a real Anthropic model instead of the stub handler")
	cmd.Flags().StringVar(&model, "model", "claude-3-5-sonnet-latest", "Model id used with --live")
	return cmd
}

func loadPipeline(path string) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	var p pipeline.Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}
	return &p, nil
}

func distinctAgents(p *pipeline.Pipeline) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range p.Stages {
		out[s.Agent.Agent] = struct{}{}
	}
	return out
}

// stageHandlerFor returns a StageHandler for agent: a stub that always
// reports success unless live is set, in which case it delegates to a real
// Anthropic completion via pipeline.NewAgentStageHandler.
func stageHandlerFor(agent string, live bool, model string) (pipeline.StageHandler, error) {
	if !live {
		return func(context.Context, *pipeline.StageInput) (*pipeline.Outcome, error) {
			return &pipeline.Outcome{Status: pipeline.StatusSuccess}, nil
		}, nil
	}
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for --live runs")
	}
	client := anthropic.NewFromAPIKey(apiKey, anthropic.Options{DefaultModel: model})
	return pipeline.NewAgentStageHandler(client, model, false, nil), nil
}
