package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphbench/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Serve a fake Gremlin endpoint",
	Long: fmt.Sprintf(`Serve a fake Gremlin endpoint answering every script with made-up
results shaped like the real ones. Profiles: %s.`, strings.Join(dummy.ProfileNames(), ", ")),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		profile, _ := cmd.Flags().GetString("profile")
		results, _ := cmd.Flags().GetInt("results")

		srv, _, err := dummy.Start(cmd.Context(), dummy.ServerConfig{
			Port:    port,
			Profile: profile,
			Results: results,
		}, logger)
		if err != nil {
			return err
		}
		<-cmd.Context().Done()
		logger.Info("dummy server stopped",
			zap.Uint64("requests", srv.Requests()),
			zap.Uint64("failures", srv.Failures()))
		return nil
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8182, "port to listen on")
	dummyCmd.Flags().String("profile", "fast", "latency and error profile")
	dummyCmd.Flags().Int("results", 20, "results per query")
}
