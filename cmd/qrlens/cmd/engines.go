package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrlens/internal/engines"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

func newEnginesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engines",
		Short: "Manage the reverse image search engines",
		Long: `Manage the registry of reverse image search engines used by "qrlens search"
and the HTTP server. Engines are addressed by ID or by name.

Examples:
  qrlens engines list
  qrlens engines add "My Engine" "https://example.com/search?img="
  qrlens engines toggle baidu
  qrlens engines template bing`,
	}
	cmd.AddCommand(
		newEnginesListCommand(a),
		newEnginesAddCommand(a),
		newEnginesEditCommand(a),
		newEnginesDeleteCommand(a),
		newEnginesToggleCommand(a),
		newEnginesTemplateCommand(a),
		newEnginesResetCommand(a),
	)
	return cmd
}

// resolveEngine finds an engine by ID, then by name.
func resolveEngine(store *engines.Store, ref string) (engines.Engine, error) {
	e, err := store.Get(ref)
	if errors.Is(err, engines.ErrNotFound) {
		return store.FindByName(ref)
	}
	return e, err
}

func printEngines(w io.Writer, list []engines.Engine) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tURL")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", e.ID, e.Name, e.Enabled, e.URL)
	}
	return tw.Flush()
}

func printEngine(w io.Writer, verb string, e engines.Engine) error {
	_, err := fmt.Fprintf(w, "%s %s (%s)\n", verb, e.Name, e.ID)
	return err
}

func newEnginesListCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.store().List()
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				s, err := pipeline.ToJSON(list)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), "", s)
			}
			return printEngines(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().Bool("json", false, "print the registry as JSON")
	return cmd
}

func newEnginesAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <url-prefix>",
		Short: "Add a custom engine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.store().Add(args[0], args[1])
			if err != nil {
				return err
			}
			return printEngine(cmd.OutOrStdout(), "Added", e)
		},
	}
}

func newEnginesEditCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Rename an engine or change its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			e, err := resolveEngine(store, args[0])
			if err != nil {
				return err
			}
			name, url := e.Name, e.URL
			if cmd.Flags().Changed("name") {
				name, _ = cmd.Flags().GetString("name")
			}
			if cmd.Flags().Changed("url") {
				url, _ = cmd.Flags().GetString("url")
			}
			if e, err = store.Edit(e.ID, name, url); err != nil {
				return err
			}
			return printEngine(cmd.OutOrStdout(), "Updated", e)
		},
	}
	cmd.Flags().String("name", "", "new display name")
	cmd.Flags().String("url", "", "new URL prefix")
	cmd.MarkFlagsOneRequired("name", "url")
	return cmd
}

func newEnginesDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id|name>",
		Aliases: []string{"rm"},
		Short:   "Remove an engine",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			e, err := resolveEngine(store, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(e.ID); err != nil {
				return err
			}
			return printEngine(cmd.OutOrStdout(), "Deleted", e)
		},
	}
}

func newEnginesToggleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id|name>",
		Short: "Enable or disable an engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			e, err := resolveEngine(store, args[0])
			if err != nil {
				return err
			}
			if e, err = store.Toggle(e.ID); err != nil {
				return err
			}
			verb := "Disabled"
			if e.Enabled {
				verb = "Enabled"
			}
			return printEngine(cmd.OutOrStdout(), verb, e)
		},
	}
}

func newEnginesTemplateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "template [key]",
		Short: "Add a predefined engine, or list the templates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tNAME\tURL")
				for _, k := range engines.TemplateKeys() {
					t := engines.Templates[k]
					fmt.Fprintf(tw, "%s\t%s\t%s\n", k, t.Name, t.URL)
				}
				return tw.Flush()
			}
			e, err := a.store().AddTemplate(args[0])
			if err != nil {
				return err
			}
			return printEngine(w, "Added", e)
		},
	}
}

func newEnginesResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.store().Reset()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Restored %d default engines\n", len(list))
			return err
		},
	}
}
