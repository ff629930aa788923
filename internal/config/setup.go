package config

import (
	"bufio"
	"crypto/md5"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard guides the user through first-time configuration.
func RunSetupWizard(cfg *Config) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║          Overture - First Run Setup          ║")
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Println("║  Welcome! Let's configure your account.      ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Println("── Server ──")

	cfg.ServerData.Endpoint = promptString(reader, "Server domain (e.g. overture.gg)", cfg.ServerData.Endpoint)

	fmt.Println()
	fmt.Println("── Account ──")

	cfg.ServerData.UseOAuth = promptBool(reader, "Use browser (OAuth) login", cfg.ServerData.UseOAuth)
	if !cfg.ServerData.UseOAuth {
		cfg.ServerData.Username = promptString(reader, "Username", cfg.ServerData.Username)
		// Only the md5 of the password is ever stored or sent.
		password := promptPassword(reader, "Password")
		if password != "" {
			cfg.ServerData.PasswordMD5 = fmt.Sprintf("%x", md5.Sum([]byte(password)))
		}
	}

	fmt.Println()
	fmt.Println("── Client ──")

	cfg.ServerData.UTCOffset = promptInt(reader, "UTC offset (hours)", cfg.ServerData.UTCOffset)
	cfg.ServerData.DisplayCity = promptBool(reader, "Show your city to other players", cfg.ServerData.DisplayCity)
	cfg.ServerData.PMsPrivate = promptBool(reader, "Block PMs from non-friends", cfg.ServerData.PMsPrivate)
	cfg.ServerData.DataDirectory = promptString(reader, "Data directory", cfg.ServerData.DataDirectory)

	fmt.Println()
	fmt.Println("── Local API ──")

	cfg.ApplicationData.API.Enabled = promptBool(reader, "Enable local REST API", cfg.ApplicationData.API.Enabled)
	if cfg.ApplicationData.API.Enabled {
		cfg.ApplicationData.API.Port = promptInt(reader, "REST API port", cfg.ApplicationData.API.Port)
	}

	fmt.Println()
	fmt.Println("── MQTT Telemetry ──")

	cfg.ApplicationData.MQTT.Enabled = promptBool(reader, "Enable MQTT telemetry", cfg.ApplicationData.MQTT.Enabled)
	if cfg.ApplicationData.MQTT.Enabled {
		cfg.ApplicationData.MQTT.BrokerURL = promptString(reader, "MQTT broker", cfg.ApplicationData.MQTT.BrokerURL)
	}

	// Validate before saving
	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Println("\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Printf("  - [%s] %s\n", e.Field, e.Message)
		}
		retry := promptString(reader, "Would you like to try again? (yes/no)", "yes")
		if strings.ToLower(retry) == "yes" {
			return RunSetupWizard(cfg)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	// Save configuration
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved successfully!")
	fmt.Println("  Overture will now connect with your configuration.")
	fmt.Println()

	return nil
}

func promptString(reader *bufio.Reader, prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("  %s: ", prompt)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptPassword(reader *bufio.Reader, prompt string) string {
	fmt.Printf("  %s: ", prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func promptInt(reader *bufio.Reader, prompt string, defaultVal int) int {
	fmt.Printf("  %s [%d]: ", prompt, defaultVal)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Printf("    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func promptBool(reader *bufio.Reader, prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Printf("  %s [%s]: ", prompt, defaultStr)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultVal
	}

	return input == "yes" || input == "y" || input == "true" || input == "1"
}
