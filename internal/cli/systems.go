package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/reqjourney-go/internal/config"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List the systems available for fit-gap analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := config.LoadSystems(cfg.SystemsFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range catalog.Systems() {
			marker := "  "
			if s == models.DefaultSystemPair.Source || s == models.DefaultSystemPair.Destination {
				marker = "* "
			}
			fmt.Fprintln(out, marker+s)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, defaultTheme.hintStyle().Render("* default pair: "+models.DefaultSystemPair.String()))
		return nil
	},
}
