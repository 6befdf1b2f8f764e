package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/voxchat/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Voxchat Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. Ollama base URL
		cfg.LLM.BaseURL = promptValue(scanner, "Ollama base URL", cfg.LLM.BaseURL)

		// 2. Model name
		cfg.LLM.Model = promptValue(scanner, "Model name", cfg.LLM.Model)

		// 3. Max output tokens
		maxTokensStr := promptValue(scanner, "Max output tokens", strconv.Itoa(cfg.LLM.MaxTokens))
		if n, err := strconv.Atoi(maxTokensStr); err == nil {
			cfg.LLM.MaxTokens = n
		}

		// 4. Speech synthesis (optional)
		cfg.TTS.APIKey = promptValue(scanner, "OpenAI API key for speech (optional)", cfg.TTS.APIKey)
		cfg.TTS.Enabled = cfg.TTS.APIKey != ""
		if cfg.TTS.Enabled {
			cfg.TTS.Voice = promptValue(scanner, "Voice", cfg.TTS.Voice)
		}

		// 5. Weather API key (optional)
		cfg.Weather.APIKey = promptValue(scanner, "OpenWeatherMap API key (optional)", cfg.Weather.APIKey)

		// 6. Telegram bot token (optional)
		cfg.Telegram.Token = promptValue(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// promptValue displays a labeled prompt with a default value and reads user
// input. If the user enters nothing, the default is returned.
func promptValue(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
