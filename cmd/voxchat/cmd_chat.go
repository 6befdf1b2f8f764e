package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/voxchat/internal/gateway"
	"github.com/user/voxchat/internal/prompt"
	"github.com/user/voxchat/internal/runtime"
	"github.com/user/voxchat/internal/runtime/tools"
	"github.com/user/voxchat/internal/state"
	"github.com/user/voxchat/internal/types"
	"github.com/user/voxchat/pkg/llm"
	"github.com/user/voxchat/pkg/llm/ollama"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the model from the terminal",
	Long:  "With a message argument, runs one turn and exits. Without one, starts an interactive session; quit with Ctrl-D.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	sessions := state.NewSessionStore()
	artifacts := state.NewArtifactStore()

	provider := ollama.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.ModelTimeoutSecs) * time.Second,
	})

	engine, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt engine: %w", err)
	}

	registry := runtime.NewRegistry()
	registry.Register(tools.NewCalculator())
	if cfg.Weather.APIKey != "" {
		registry.Register(tools.NewWeather(cfg.Weather.APIKey, cfg.Weather.DefaultLocation, cfg.Weather.Units))
	}
	registry.Register(tools.NewReadURL())

	executor := runtime.NewExecutor(registry,
		time.Duration(cfg.ToolTimeoutSecs)*time.Second, cfg.MaxToolConcurrent)
	rt := runtime.New(provider, engine, sessions, artifacts, registry, executor,
		time.Duration(cfg.ModelTimeoutSecs)*time.Second)

	gw := gateway.New(sessions, int64(cfg.MaxConcurrent))
	rt.SetRetry(gw.Retry)
	gw.Queue.SetProcessor(rt.ProcessRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw.Start(ctx)
	defer gw.Stop()

	var sessionID types.SessionID

	ask := func(text string) error {
		result, err := gw.Submit(ctx, &types.InboundTurn{
			Source:    "cli",
			SessionID: sessionID,
			Text:      text,
		})
		if err != nil {
			return err
		}
		sessionID = result.SessionID
		fmt.Println(result.Text)
		return nil
	}

	if len(args) == 1 {
		return ask(args[0])
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := ask(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}
