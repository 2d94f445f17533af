package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change configuration",
	Long: `Shows or edits the settings in ~/.embedsync/config.toml.

Keys use dotted paths, e.g. pinecone.host or export.max_retries.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// shownKeys is the fixed display set; Show never prints the API key itself.
var shownKeys = []string{
	"storage.data_dir",
	"pinecone.host",
	"pinecone.namespace",
	"export.lease_ttl_seconds",
	"export.batch_timeout_seconds",
	"export.max_retries",
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Printf("Config file: %s\n\n", configStore.Path())
	for _, key := range shownKeys {
		value, ok := configStore.Get(key)
		if !ok {
			cmd.Printf("  %s: (not set)\n", key)
			continue
		}
		cmd.Printf("  %s: %v\n", key, value)
	}

	if configStore.GetString("pinecone.api_key") != "" {
		cmd.Printf("  pinecone.api_key: %s\n", maskValue(configStore.GetString("pinecone.api_key")))
	} else {
		cmd.Println("  pinecone.api_key: (not set, PINECONE_API_KEY env is used as fallback)")
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	value, ok := configStore.Get(args[0])
	if !ok {
		cmd.Printf("%s: (not set)\n", args[0])
		return nil
	}
	if strings.HasSuffix(args[0], "api_key") {
		value = maskValue(configStore.GetString(args[0]))
	}
	cmd.Printf("%s: %v\n", args[0], value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	if err := configStore.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

// maskValue hides all but the last four characters of a secret.
func maskValue(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
