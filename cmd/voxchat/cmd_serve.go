package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/voxchat/internal/gateway"
	"github.com/user/voxchat/internal/httpapi"
	"github.com/user/voxchat/internal/prompt"
	"github.com/user/voxchat/internal/runtime"
	"github.com/user/voxchat/internal/runtime/tools"
	"github.com/user/voxchat/internal/state"
	"github.com/user/voxchat/internal/telegram"
	"github.com/user/voxchat/pkg/llm"
	"github.com/user/voxchat/pkg/llm/ollama"
	"github.com/user/voxchat/pkg/tts"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the voxchat daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "voxchat.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	sessions := state.NewSessionStore()
	artifacts := state.NewArtifactStore()
	sessions.StartSweeper(ctx, time.Minute, time.Duration(cfg.SessionTTLMins)*time.Minute)
	artifacts.StartSweeper(ctx, time.Minute, time.Duration(cfg.ArtifactTTLMins)*time.Minute)

	// LLM provider
	provider := ollama.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.ModelTimeoutSecs) * time.Second,
	})

	// Prompt engine
	engine, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt engine: %w", err)
	}

	// Tool registry
	registry := runtime.NewRegistry()
	registry.Register(tools.NewCalculator())
	if cfg.Weather.APIKey != "" {
		registry.Register(tools.NewWeather(cfg.Weather.APIKey, cfg.Weather.DefaultLocation, cfg.Weather.Units))
	}
	registry.Register(tools.NewReadURL())

	executor := runtime.NewExecutor(registry,
		time.Duration(cfg.ToolTimeoutSecs)*time.Second, cfg.MaxToolConcurrent)

	// Runtime
	rt := runtime.New(provider, engine, sessions, artifacts, registry, executor,
		time.Duration(cfg.ModelTimeoutSecs)*time.Second)

	// Speech synthesis
	if cfg.TTS.Enabled {
		speech, err := tts.NewOpenAI(tts.OpenAIConfig{
			APIKey: cfg.TTS.APIKey,
			Model:  cfg.TTS.Model,
			Voice:  cfg.TTS.Voice,
		})
		if err != nil {
			return fmt.Errorf("create speech provider: %w", err)
		}
		rt.EnableVoice(speech)
		slog.Info("speech synthesis enabled", "voice", cfg.TTS.Voice)
	}

	// Gateway
	gw := gateway.New(sessions, int64(cfg.MaxConcurrent))
	rt.SetRetry(gw.Retry)
	gw.Queue.SetProcessor(rt.ProcessRun)

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("voxchat started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_model", cfg.LLM.Model,
		"llm_base_url", cfg.LLM.BaseURL,
		"tts_enabled", cfg.TTS.Enabled,
		"pid_file", pidPath,
	)

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, sessions, artifacts)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// HTTP API
	apiSrv := httpapi.NewServer(gw.Submit, sessions, artifacts, cfg.HTTP.APIToken)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: apiSrv,
	}
	go func() {
		slog.Info("http api started", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http api error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
