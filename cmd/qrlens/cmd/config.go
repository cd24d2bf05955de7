package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/qrlens/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(a), newConfigShowCommand(a))
	return cmd
}

func newConfigInitCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a configuration file with the default settings",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"config": "lenient"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			exists, err := afero.Exists(a.fs, path)
			if err != nil {
				return err
			}
			if exists && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.GenerateDefaultConfigFile(path); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"config": "lenient"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				data []byte
				err  error
			)
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				data, err = json.MarshalIndent(a.cfg, "", "  ")
				data = append(data, '\n')
			} else {
				data, err = yaml.Marshal(a.cfg)
			}
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if used := a.loader.ConfigFileUsed(); used != "" && !asJSON {
				fmt.Fprintf(w, "# loaded from %s\n", used)
			}
			_, err = w.Write(data)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}
