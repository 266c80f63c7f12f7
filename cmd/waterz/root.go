package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"waterz/internal/backend"
	"waterz/internal/config"
	"waterz/internal/logging"
	"waterz/internal/pricing"
	"waterz/internal/service"
)

type cliOptions struct {
	configPath string
	token      string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "waterz",
		Short:         "Yacht booking pricing, slots and ride tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "path to the gateway config")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("WATERZ_TOKEN"), "customer bearer token")

	rootCmd.AddCommand(
		durationCmd(),
		peakCmd(),
		formatTimeCmd(),
		quoteCmd(opts),
		slotsCmd(opts),
		ridesCmd(opts),
		checkoutCmd(opts),
		whoamiCmd(opts),
	)
	return rootCmd
}

// env is what the backend-facing commands share.
type env struct {
	cfg     *config.Config
	logger  *zerolog.Logger
	client  *backend.Client
	catalog *service.CatalogService
	account *service.AccountService
	auth    backend.AuthContext
}

func (o *cliOptions) load(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	// Логи CLI идут в stderr, вывод команд в stdout.
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging, cfg.App)

	window, err := pricing.ParseWindow(cfg.Pricing.NonPeakStart, cfg.Pricing.NonPeakEnd)
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(cfg.Backend, logging.Component(logger, "backend"))
	return &env{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		catalog: service.NewCatalogService(client, pricing.NewClassifier(window), logging.Component(logger, "catalog")),
		account: service.NewAccountService(client, logging.Component(logger, "account")),
		auth:    backend.AuthContext{Token: strings.TrimSpace(o.token)},
	}, nil
}
