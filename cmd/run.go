package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"graphbench/internal/cli"
	"graphbench/internal/pool"
	"graphbench/internal/queries"
	"graphbench/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run [query...]",
	Short: "Benchmark queries against the cluster",
	Long: fmt.Sprintf(`Benchmark queries against the cluster.

The endpoint is read from CLUSTER_ENDPOINT and CLUSTER_PORT (default 8182).
Queries may be given with --queries or as arguments.
Available queries: %s, or %s.`, strings.Join(queries.Names(), ", "), queries.All),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := dbPath()
		if err != nil {
			return err
		}
		opts := cli.Options{
			Endpoint:       viper.GetString("cluster.endpoint"),
			Port:           viper.GetInt("cluster.port"),
			Secure:         viper.GetBool("cluster.tls"),
			Users:          viper.GetInt("run.users"),
			Samples:        viper.GetInt("run.samples"),
			Queries:        queryNames(viper.GetStringSlice("run.queries"), cmd.Flags().Changed("queries"), args),
			TrialTimeout:   viper.GetDuration("run.timeout"),
			AcquireRetries: viper.GetInt("run.acquire-retries"),
			AcquireWait:    viper.GetDuration("run.acquire-wait"),
			CSV:            viper.GetBool("run.csv"),
			JSON:           viper.GetBool("run.json"),
			Output:         viper.GetString("run.output"),
			MetricsAddr:    viper.GetString("run.metrics-addr"),
			TUI:            viper.GetBool("run.tui"),
			DBPath:         db,
			WebsitesFile:   viper.GetString("run.websites-file"),
			WebsitesTTL:    viper.GetDuration("run.websites-ttl"),
			Seed:           viper.GetInt64("run.seed"),
		}
		_, err = cli.Start(cmd.Context(), opts, logger, cmd.OutOrStdout())
		return err
	},
}

// queryNames joins --queries with positional names. Positional names alone
// replace the default selection.
func queryNames(flagged []string, set bool, args []string) []string {
	if len(args) == 0 {
		return flagged
	}
	if !set {
		return args
	}
	return append(slices.Clone(flagged), args...)
}

func init() {
	f := runCmd.Flags()
	f.IntP("users", "u", 10, "concurrent users, also the connection pool size")
	f.IntP("samples", "n", 1000, "trials per query")
	f.StringSliceP("queries", "q", []string{queries.All}, "queries to run")
	f.Duration("timeout", runner.DefaultTrialTimeout, "per trial timeout")
	f.Int("acquire-retries", pool.DefaultRetries, "attempts to borrow a connection before a trial fails")
	f.Duration("acquire-wait", pool.DefaultAttemptWait, "wait for a released connection between attempts")
	f.Bool("csv", false, "write per trial results and counts as CSV")
	f.Bool("json", false, "write every trial record as JSON")
	f.StringP("output", "o", "results", "directory for result files")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.Bool("tui", false, "interactive progress view")
	f.Bool("tls", false, "connect with wss://")
	f.String("websites-file", "", "website ids, one per line, used when discovery fails")
	f.Duration("websites-ttl", queries.DefaultWebsitesTTL, "reuse discovered most active websites for this long")
	f.Int64("seed", 0, "seed for argument discovery (default random)")

	for _, name := range []string{"users", "samples", "queries", "timeout", "acquire-retries", "acquire-wait",
		"csv", "json", "output", "metrics-addr", "tui", "websites-file", "websites-ttl", "seed"} {
		viper.BindPFlag("run."+name, f.Lookup(name))
	}
	viper.BindPFlag("cluster.tls", f.Lookup("tls"))
}
