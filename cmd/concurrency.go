package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"graphbench/internal/cli"
	"graphbench/internal/concurrency"
)

var concurrencyCmd = &cobra.Command{
	Use:   "concurrency",
	Short: "Rebuild the concurrency achieved by recorded runs",
	Long: `Rebuild how many queries were in flight over time from the CSV results
of one or more client instances. Each instance directory under --results
holds the {query}-{samples}-{users}.csv file written by "run --csv".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := dbPath()
		if err != nil {
			return err
		}
		opts := cli.ConcurrencyOptions{
			Results:   viper.GetString("concurrency.results"),
			Query:     viper.GetString("concurrency.query"),
			Samples:   viper.GetInt("concurrency.samples"),
			Users:     viper.GetInt("concurrency.users"),
			Instances: viper.GetStringSlice("concurrency.instances"),
			Cadence:   viper.GetDuration("concurrency.cadence"),
			DBPath:    db,
		}
		_, err = cli.Concurrency(opts, logger, cmd.OutOrStdout())
		return err
	},
}

func init() {
	f := concurrencyCmd.Flags()
	f.String("results", "results", "directory holding one sub directory per instance")
	f.String("query", "", "query name")
	f.Int("samples", 1000, "samples of the recorded runs")
	f.Int("users", 10, "users of the recorded runs")
	f.StringSlice("instances", nil, "instance directories to combine")
	f.Duration("cadence", concurrency.DefaultCadence, "resampling bucket width")
	concurrencyCmd.MarkFlagRequired("query")
	concurrencyCmd.MarkFlagRequired("instances")

	for _, name := range []string{"results", "query", "samples", "users", "instances", "cadence"} {
		viper.BindPFlag("concurrency."+name, f.Lookup(name))
	}
}
