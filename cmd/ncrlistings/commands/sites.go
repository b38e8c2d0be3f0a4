package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List site descriptors and their cities",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		sites, err := loadSites(viper.GetString("sites-dir"))
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, name := range sites.Names() {
			site := sites[name]
			fmt.Fprintf(w, "%s\t%s\n", site.Name, site.BaseURL)
			fmt.Fprintf(w, "  cities: %s\n", strings.Join(site.Cities, ", "))
			fmt.Fprintf(w, "  pages:  %s\n", site.PageURL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
	sitesCmd.Flags().String("sites-dir", "", "directory of extra site descriptors (YAML)")
}
