package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"graphbench/internal/banner"
	"graphbench/internal/gremlin"
	"graphbench/internal/logging"
	"graphbench/internal/storage"
)

var (
	cfgFile string
	verbose bool
	logger  = logging.New(false)
)

var rootCmd = &cobra.Command{
	Use:   "graphbench",
	Short: "graphbench - Gremlin query benchmark",
	Long: `
graphbench measures the latency of identity-graph traversals against a
Gremlin endpoint under a fixed number of concurrent users.

  graphbench run           benchmark queries and record the results
  graphbench concurrency   rebuild the concurrency achieved by past runs
  graphbench history       list recorded runs
  graphbench dummy         serve a fake Gremlin endpoint`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.New(viper.GetBool("verbose"))
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("graphbench failed", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.graphbench.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging, including every sample")
	rootCmd.PersistentFlags().String("db", "", "history and cache database (default is $HOME/.graphbench/graphbench.db)")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(runCmd, concurrencyCmd, historyCmd, dummyCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".graphbench")
		}
	}

	viper.SetDefault("cluster.port", gremlin.DefaultPort)
	viper.BindEnv("cluster.endpoint", "CLUSTER_ENDPOINT", "NEPTUNE_CLUSTER_ENDPOINT")
	viper.BindEnv("cluster.port", "CLUSTER_PORT", "NEPTUNE_CLUSTER_PORT")
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func dbPath() (string, error) {
	if p := viper.GetString("db"); p != "" {
		return p, nil
	}
	return storage.DefaultPath()
}
