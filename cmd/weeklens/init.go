package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"weeklens/internal/config"
)

var initForce bool

// initCmd writes a starter configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Writes the default configuration: weekly strict-mode reports from
file exports under exports/, traffic required, search trailing three days.

Secrets never go in the file. Set GEMINI_API_KEY in the environment or a
local .env before generating reports.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}
	if err := config.DefaultConfig().Save(cfgPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", cfgPath)
	fmt.Println("Next steps:")
	fmt.Println("  1. Drop analytics exports into exports/ (traffic.json, search.json)")
	fmt.Println("  2. Set GEMINI_API_KEY in the environment or a local .env")
	fmt.Println("  3. weeklens run")
	return nil
}
