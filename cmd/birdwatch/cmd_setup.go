package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/birdwatch/internal/config"
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

		fmt.Println("Birdwatch Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. API key
		cfg.API.Key = prompt(scanner, "Search API key", cfg.API.Key)

		// 2. Telegram bot token
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token", cfg.Telegram.Token)

		// 3. Telegram chat ID
		chatIDStr := prompt(scanner, "Telegram chat ID", strconv.FormatInt(cfg.Telegram.ChatID, 10))
		if n, err := strconv.ParseInt(chatIDStr, 10, 64); err == nil {
			cfg.Telegram.ChatID = n
		}

		// 4. Check interval
		intervalStr := prompt(scanner, "Check interval in seconds", strconv.Itoa(cfg.Monitoring.CheckIntervalSeconds))
		if n, err := strconv.Atoi(intervalStr); err == nil {
			cfg.Monitoring.CheckIntervalSeconds = n
		}

		// 5. Cooldown
		cooldownStr := prompt(scanner, "Per-account cooldown in minutes", strconv.Itoa(cfg.Monitoring.CooldownMinutes))
		if n, err := strconv.Atoi(cooldownStr); err == nil {
			cfg.Monitoring.CooldownMinutes = n
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
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
