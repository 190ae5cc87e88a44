package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	storetestapp "github.com/nonebot/store-test/internal/app"
	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/registry"
	"github.com/nonebot/store-test/internal/storetest"
	"github.com/nonebot/store-test/internal/telemetry"
)

const telemetryShutdownTimeout = 10 * time.Second

// runFlags lists the flags of the run command bound through viper
var runFlags = []string{"config", "offset", "limit", "force", "key", "plugin-config", "data"}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Test the store plugins and write the new snapshot",
		Long: `Test the plugins of the NoneBot store and write the new snapshot.

Without --key, plugins are visited in store order starting at --offset and at
most --limit of them are tested. Plugins whose latest published version was
already tested are skipped unless --force is given.

With --key, only that plugin is tested, using --plugin-config as its
configuration and --data as its metadata when its test is skipped.

Every flag can also be set through the environment, e.g. STORE_TEST_LIMIT.`,
		Args: cobra.NoArgs,
		RunE: runStoreTest,
	}

	runCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	runCmd.Flags().Int("offset", 0, "Number of store plugins to pass over before testing")
	runCmd.Flags().Int("limit", 1, "Maximum number of plugins to test")
	runCmd.Flags().Bool("force", false, "Test plugins even if their version is unchanged")
	runCmd.Flags().String("key", "", "Test only the plugin with this project_link:module_name key")
	runCmd.Flags().String("plugin-config", "", "Plugin configuration (.env format) for --key")
	runCmd.Flags().String("data", "", "Plugin metadata JSON for --key")

	for _, name := range runFlags {
		if err := viper.BindPFlag(name, runCmd.Flags().Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
		}
	}

	return runCmd
}

func runStoreTest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(viper.GetString("config"))
	if err != nil {
		return err
	}

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}

	options := storetest.Options{
		Offset: viper.GetInt("offset"),
		Limit:  viper.GetInt("limit"),
		Force:  viper.GetBool("force"),
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	storeTest, err := storetestapp.NewStoreTestApp(ctx,
		storetestapp.WithConfig(cfg),
		storetestapp.WithRunOptions(options),
		storetestapp.WithMeterProvider(tel.MeterProvider()),
		storetestapp.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to create store test: %w", err)
	}

	summary, err := storeTest.Run(ctx, req)
	if summary != nil && summary.Report != nil {
		if printErr := printSummary(cmd.OutOrStdout(), summary.Report); printErr != nil {
			slog.Warn("Failed to print run summary", "error", printErr)
		}
	}
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		slog.Info("No configuration file given, using defaults")
		return config.Default(), nil
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", path, "output", cfg.Output.Directory)
	return cfg, nil
}

// requestFromFlags builds the candidate selection. The plugin config and
// data are only meaningful with an explicit key.
func requestFromFlags(cmd *cobra.Command) (*storetest.Request, error) {
	req := &storetest.Request{}

	rawKey := viper.GetString("key")
	pluginConfig := optionalString(cmd, "plugin-config")
	data := optionalString(cmd, "data")

	if rawKey == "" {
		if pluginConfig != nil || data != nil {
			slog.Warn("--plugin-config and --data are ignored without --key")
		}
		return req, nil
	}

	key, err := registry.ParseKey(rawKey)
	if err != nil {
		return nil, err
	}
	req.Key = key
	req.Config = pluginConfig
	req.Data = data
	return req, nil
}

// optionalString returns the flag value when it was given on the command line
// or through the environment, and nil otherwise
func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) && !viper.IsSet(name) {
		return nil
	}
	value := viper.GetString(name)
	return &value
}
