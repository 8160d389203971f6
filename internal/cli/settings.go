package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lucasnoah/fixloop/internal/config"
	"github.com/lucasnoah/fixloop/internal/logging"
	"github.com/lucasnoah/fixloop/internal/sandbox"
)

const (
	envPrefix  = "FIXLOOP"
	dotEnvFile = ".env"

	configFlagName   = "config"
	logLevelKey      = "log-level"
	logFileKey       = "log-file"
	rootKey          = "root"
	extensionsKey    = "extensions"
	fixturesKey      = "fixtures"
	maxRoundsKey     = "max-rounds"
	patchModeKey     = "patch-mode"
	dryRunKey        = "dry-run"
	metricsAddrKey   = "metrics-addr"
	extFlagName      = "ext"
	excludeFlagName  = "exclude"
	noFailFlagName   = "no-fail"
	languageFlagName = "language"
)

// configPath is the --config persistent flag.
var configPath string

func init() {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
}

// bindFlagToConfig wires a cobra flag to a viper key so FIXLOOP_* env values
// feed the same setting.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// loadConfig resolves the configuration in order: YAML file (or built-in
// defaults), credentials from the environment and .env, then FIXLOOP_* env
// vars and flags.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	config.ApplyEnv(cfg, os.Getenv)
	applyOverrides(cfg)
	return cfg, nil
}

// applyOverrides copies every viper key that a flag or env var set onto cfg.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet(rootKey) {
		cfg.Root = viper.GetString(rootKey)
	}
	if viper.IsSet(extensionsKey) {
		cfg.Extensions = normalizeExtensions(viper.GetStringSlice(extensionsKey))
	}
	if viper.IsSet(fixturesKey) {
		cfg.Fixtures = viper.GetString(fixturesKey)
	}
	if viper.IsSet(maxRoundsKey) {
		cfg.Repair.MaxRounds = viper.GetInt(maxRoundsKey)
	}
	if viper.IsSet(patchModeKey) {
		cfg.Repair.PatchMode = viper.GetString(patchModeKey)
	}
	if viper.IsSet(dryRunKey) {
		cfg.Repair.DryRun = viper.GetBool(dryRunKey)
	}
	if viper.IsSet(logLevelKey) {
		cfg.Log.Level = viper.GetString(logLevelKey)
	}
	if viper.IsSet(logFileKey) {
		cfg.Log.File = viper.GetString(logFileKey)
	}
	if viper.IsSet(metricsAddrKey) {
		cfg.Metrics.Addr = viper.GetString(metricsAddrKey)
	}
}

// normalizeExtensions accepts "py" and ".py" alike.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, func(), error) {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

func newSandbox(cfg *config.Config, log *zap.SugaredLogger) (*sandbox.Client, error) {
	if cfg.Sandbox.BaseURL == "" {
		return nil, errors.New("sandbox.base_url is required (JUDGE0_BASE_URL)")
	}
	return sandbox.New(sandbox.Options{
		BaseURL:           cfg.Sandbox.BaseURL,
		Token:             cfg.Sandbox.Token,
		AuthHeader:        cfg.Sandbox.AuthHeader,
		RequestsPerSecond: cfg.Sandbox.RequestsPerSecond,
		PollInterval:      cfg.Sandbox.PollIntervalDur,
		PollMaxInterval:   cfg.Sandbox.PollMaxIntervalDur,
		PollTimeout:       cfg.Sandbox.PollTimeoutDur,
		HTTPTimeout:       cfg.Sandbox.HTTPTimeoutDur,
	}, log), nil
}

// printValidation writes errs in the format used by config validate.
func printValidation(cmd *cobra.Command, errs []config.ValidationError) error {
	cmd.Println("Validation errors:")
	for _, e := range errs {
		cmd.Printf("  - %s\n", e)
	}
	return fmt.Errorf("config has %d validation error(s)", len(errs))
}
