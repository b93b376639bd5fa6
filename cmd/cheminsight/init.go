package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheminsight/cheminsight/internal/config"
	"gopkg.in/yaml.v3"
)

func handleInit(args []string) {
	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "Error: init takes no arguments\n")
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	cfg := config.DefaultClientConfig()

	fmt.Println("ChemInsight client setup")
	fmt.Println("This will create or overwrite a client config file.")
	fmt.Println()

	path := promptString(reader, "Config file path", *configPath, true)
	if _, err := os.Stat(path); err == nil {
		if !promptYesNo(reader, fmt.Sprintf("%s exists. Overwrite?", path), false) {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg.API.BaseURL = strings.TrimRight(promptString(reader, "Backend base URL", cfg.API.BaseURL, true), "/")
	cfg.API.RequestTimeoutSec = promptInt(reader, "Request timeout (seconds)", cfg.API.RequestTimeoutSec, 1, 600)
	cfg.API.LogoutPath = promptString(reader, "Logout endpoint (empty for none)", cfg.API.LogoutPath, false)
	cfg.Session.DatabasePath = promptString(reader, "Local database path", cfg.Session.DatabasePath, true)
	cfg.Session.LogoutOnUnauthorized = promptYesNo(reader, "Log out automatically when the backend rejects the session?", false)
	cfg.Report.OutputDir = promptString(reader, "Report and chart output directory", cfg.Report.OutputDir, true)
	cfg.History.TableLimit = promptInt(reader, "History rows to show", cfg.History.TableLimit, 1, 100)
	cfg.Metrics.ListenAddr = promptString(reader, "Metrics listen address (empty to disable)", "", false)
	cfg.Log.Path = promptString(reader, "Log file", cfg.Log.Path, true)
	cfg.Log.Level = promptString(reader, "Log level (debug, info, warn, error)", cfg.Log.Level, true)

	if err := writeConfigFile(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write config: %v\n", err)
		os.Exit(1)
	}
	if _, err := config.LoadClientConfig(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: written config does not validate: %v\n", err)
	}

	fmt.Println()
	fmt.Printf("Config written to %s\n", path)
	fmt.Printf("Next: cheminsight -config %s login\n", path)
}

// writeConfigFile writes YAML for .yaml/.yml paths and JSON otherwise.
func writeConfigFile(path string, cfg *config.ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
