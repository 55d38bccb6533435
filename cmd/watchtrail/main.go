package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/watchtrail/watchtrail/internal/observability"
	"github.com/watchtrail/watchtrail/internal/profile"
	"github.com/watchtrail/watchtrail/server"
	"github.com/watchtrail/watchtrail/store"
	"github.com/watchtrail/watchtrail/store/db"
)

const (
	greetingBanner = `watchtrail - know what you watch.`
)

var (
	version = "0.1.0"

	rootCmd = &cobra.Command{
		Use:   "watchtrail",
		Short: "A watch-history tracker with AI categorization and weekly reports",
		RunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile := &profile.Profile{
				Mode:        viper.GetString("mode"),
				Addr:        viper.GetString("addr"),
				Port:        viper.GetInt("port"),
				Data:        viper.GetString("data"),
				Driver:      viper.GetString("driver"),
				DSN:         viper.GetString("dsn"),
				InstanceURL: viper.GetString("instance-url"),
				Version:     version,
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				return fmt.Errorf("failed to validate config: %w", err)
			}

			logger := observability.NewLogger(instanceProfile.IsDev())

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				return fmt.Errorf("failed to create db driver: %w", err)
			}

			storeInstance := store.New(dbDriver, instanceProfile)
			s, err := server.NewServer(ctx, instanceProfile, storeInstance, logger)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			fmt.Printf("%s\nversion %s, mode %s, listening on %s:%d\n",
				greetingBanner, instanceProfile.Version, instanceProfile.Mode,
				instanceProfile.Addr, instanceProfile.Port)

			errCh := make(chan error, 1)
			go func() {
				errCh <- s.Start(ctx)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					logger.Error("server stopped unexpectedly", "error", err)
				}
				cancel()
			}

			s.Shutdown(context.Background())
			return nil
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8231)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8231, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "the url of your watchtrail instance")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("watchtrail")
	viper.AutomaticEnv()
}
