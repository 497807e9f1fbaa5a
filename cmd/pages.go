// cmd/pages.go
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/formpilot/internal/browser"
	"github.com/xkilldash9x/formpilot/internal/engine"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

func newPagesCommand() *cobra.Command {
	var selectID string

	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List the session's open pages and optionally focus one.",
		Long: `Lists every open page in the attached browser session. Application
providers often open the form in a popup; use --select to move the
engine's focus onto it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			mgr := browser.NewManager(appConfig, logger)
			eng := engine.New(appConfig, mgr, nil, nil, logger)
			ctx := cmd.Context()

			if selectID != "" {
				if err := eng.SelectPage(ctx, selectID); err != nil {
					return err
				}
			}

			pages, err := eng.Pages(ctx)
			if err != nil {
				return err
			}
			if len(pages) == 0 {
				fmt.Println("No open pages.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TARGET\tFOCUSED\tTITLE\tURL")
			for _, p := range pages {
				focused := ""
				if p.Focused {
					focused = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.TargetID, focused, p.Title, p.URL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&selectID, "select", "", "target ID of the page to focus")
	return cmd
}
