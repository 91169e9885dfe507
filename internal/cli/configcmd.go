package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wfkit/wf/internal/config"
	"github.com/wfkit/wf/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the wf configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented starter config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s\n", ui.Success(ui.SymbolSuccess), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Never print credentials.
		if cfg.Assist.APIKey != "" {
			cfg.Assist.APIKey = "(set)"
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Find(configPath)
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Printf("No config file found. 'wf config init' would write %s\n", config.DefaultPath())
			return nil
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}
