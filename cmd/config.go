package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gissues/internal/bootstrap/config"
	"gissues/internal/errs"
)

const defaultConfigPath = "configs/config.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and scaffold configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with every default filled in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := cfgFile
		if path == "" {
			path = defaultConfigPath
		}

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errs.Wrapf(err, "stat %s", path)
		}

		raw, err := renderDefaultConfig()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errs.Wrapf(err, "create config directory for %s", path)
		}
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			return errs.Wrapf(err, "write config %s", path)
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "config written: %s\n", path); err != nil {
			return errs.Wrap(err, "write config init output")
		}
		return nil
	},
}

// renderDefaultConfig encodes config.Default as YAML with durations spelled as "15s"
// rather than nanoseconds.
func renderDefaultConfig() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(config.Default()); err != nil {
		return nil, errs.Wrap(err, "encode default config")
	}
	humanizeDurations(&doc)

	raw, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, errs.Wrap(err, "marshal default config")
	}
	return raw, nil
}

var durationKeys = map[string]bool{"timeout": true, "interval": true}

func humanizeDurations(node *yaml.Node) {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if durationKeys[key.Value] && value.Kind == yaml.ScalarNode {
				var nanos int64
				if err := value.Decode(&nanos); err == nil {
					value.SetString(time.Duration(nanos).String())
				}
			}
		}
	}
	for _, child := range node.Content {
		humanizeDurations(child)
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}
