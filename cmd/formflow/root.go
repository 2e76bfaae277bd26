package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/formflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "formflow",
	Short: "formflow runs multi-step forms from a YAML definition",
	Long: `formflow segments a form definition into steps, validates answers as the
respondent moves through them, keeps their progress and submits the result.
Forms can be filled in the terminal or served over HTTP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"store":      "store.backend",
	"store-dir":  "store.dir",
	"log-level":  "log.level",
	"log-format": "log.format",
	"submit-url": "submit.url",
	"addr":       "server.addr",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default ./formflow.yaml if present)")
	pf.String("store", config.BackendFile, "Progress store backend: memory, file, redis or sqlite")
	pf.String("store-dir", ".formflow/progress", "Directory used by the file store")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.Bool("json", false, "Print machine readable JSON")
}

// loadConfig merges flags, FORMFLOW_* variables and the config file.
// Flags only override the file and environment when set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(file)
	if err != nil {
		return config.Config{}, err
	}
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return config.Config{}, fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return config.Load(v)
}

func jsonOutput(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("json")
	return on
}
