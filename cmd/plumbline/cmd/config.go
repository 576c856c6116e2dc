package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/plumbline/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage the plumbline configuration file.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  plumbline config init -o plumbline.yaml
  plumbline config validate -f plumbline.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Generate a default configuration file",
	Annotations: map[string]string{"config": "none"},
	RunE:        runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:         "validate",
	Short:       "Validate a configuration file",
	Annotations: map[string]string{"config": "none"},
	RunE:        runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "plumbline.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file, then write a policy with:")
	fmt.Fprintf(out, "  plumbline policy init -o %s\n", c.Policy.File)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Policy: %s\n", c.Policy.File)
	fmt.Fprintf(out, "  Prices: %s\n", c.Data.Prices)
	fmt.Fprintf(out, "  Backtest: %s (%s)\n", c.Backtest.Range(), c.Backtest.Universe)
	fmt.Fprintf(out, "  Journal: %s\n", c.Journal.Type)
	return nil
}
