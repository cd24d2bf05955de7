package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrlens/internal/engines"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

func newSearchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <image-url>",
		Short: "Print reverse image search links for an image URL",
		Long: `Build a search link for the image URL with every enabled engine, or with
the engine named by --engine.

Examples:
  qrlens search https://example.com/cat.png
  qrlens search https://example.com/cat.png --engine tineye --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageURL := strings.TrimSpace(args[0])
			if imageURL == "" {
				return errors.New("image url must not be empty")
			}

			store := a.store()
			var links []engines.Link
			if name, _ := cmd.Flags().GetString("engine"); name != "" {
				e, err := resolveEngine(store, name)
				if err != nil {
					return err
				}
				links = []engines.Link{{Engine: e.Name, URL: engines.SearchURL(e, imageURL)}}
			} else {
				list, err := store.Enabled()
				if err != nil {
					return err
				}
				links = engines.SearchLinks(list, imageURL)
			}

			if links == nil {
				links = []engines.Link{}
			}

			format, _ := cmd.Flags().GetString("format")
			switch format {
			case outputFormatJSON:
				s, err := pipeline.ToJSON(links)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), "", s)
			case outputFormatText:
				var b strings.Builder
				for _, l := range links {
					fmt.Fprintf(&b, "%s: %s\n", l.Engine, l.URL)
				}
				if len(links) == 0 {
					b.WriteString("no engines enabled\n")
				}
				_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
				return err
			default:
				return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
			}
		},
	}
	cmd.Flags().String("engine", "", "use only this engine (ID or name)")
	cmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	return cmd
}
