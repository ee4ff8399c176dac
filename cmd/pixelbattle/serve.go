package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-pixelbattle/pkg/accounts"
	"github.com/fortiblox/x1-pixelbattle/pkg/metrics"
	"github.com/fortiblox/x1-pixelbattle/pkg/rpc"
	"github.com/fortiblox/x1-pixelbattle/pkg/runtime"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// openAccountsDB opens the database under dataDir, or an in-memory one for
// ":memory:".
func openAccountsDB(dataDir string, log *logrus.Entry) (accounts.AccountsDB, error) {
	if dataDir == ":memory:" {
		log.Info("using in-memory accounts database")
		return accounts.NewMemoryDB(), nil
	}

	dbPath := filepath.Join(dataDir, "accounts")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := accounts.OpenBadgerDB(accounts.BadgerOptions{
		Path: dbPath,
		Log:  log.WithField("component", "badger"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts database: %w", err)
	}
	log.WithField("path", dbPath).Info("opened accounts database")
	return db, nil
}

func runServe(ctx context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("serve takes no arguments")
	}
	o, log := e.opts, e.log

	log.WithField("version", Version).Info("starting X1 Pixel Battle")

	db, err := openAccountsDB(o.dataDir, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("flushing accounts database")
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("error closing accounts database")
		}
	}()

	registry := runtime.NewProgramRegistry()
	runtime.RegisterNativePrograms(registry)

	config := runtime.DefaultConfig()
	config.ComputeUnits = types.ComputeUnits(o.computeUnits)
	config.AirdropLimit = types.Lamports(o.airdropLimit)
	bank, err := runtime.NewBank(db, registry, config, log)
	if err != nil {
		return err
	}

	for _, id := range registry.ListPrograms() {
		name, _ := registry.GetProgramName(id)
		log.WithFields(logrus.Fields{"program": name, "id": id.String()}).Info("registered program")
	}

	serverConfig := rpc.DefaultServerConfig()
	serverConfig.Address = o.rpcAddr
	serverConfig.Logger = log
	serverConfig.EnableRateLimit = o.rps > 0
	serverConfig.RateLimitRPS = o.rps
	serverConfig.RateLimitBurst = o.burst
	serverConfig.TrustForwardedFor = o.trustProxy

	// Start metrics server if enabled
	var metricsServer *metrics.Server
	var health *metrics.HealthChecker
	var collectors *metrics.CollectorManager
	if o.metrics {
		m := metrics.NewMetrics()
		bank.SetObserver(m)
		serverConfig.Observer = m

		collectors = metrics.NewCollectorManager()
		collectors.Add(metrics.NewBankCollector(m, bank, 5*time.Second))
		collectors.Start()

		health = metrics.NewHealthChecker()
		health.RegisterCheck("accounts_db", metrics.ErrorCheck(func(context.Context) error {
			acc, err := bank.GetAccount(types.SysvarRentID)
			if err != nil {
				return err
			}
			if acc == nil {
				return fmt.Errorf("rent sysvar missing")
			}
			return nil
		}))
		health.Start(ctx)

		metricsServer = metrics.NewServer(
			metrics.WithAddr(o.metricsAddr),
			metrics.WithMetrics(m),
			metrics.WithHealthChecker(health),
			metrics.WithLogger(log),
		)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"config":        o.configFile,
		"data_dir":      o.dataDir,
		"rpc_addr":      o.rpcAddr,
		"rate_limit":    o.rps,
		"metrics":       o.metrics,
		"compute_units": o.computeUnits,
		"airdrop_limit": o.airdropLimit,
	}).Info("configuration")

	rpcServer := rpc.NewServer(serverConfig, bank)
	errCh := make(chan error, 1)
	go func() {
		errCh <- rpcServer.Start(ctx)
	}()
	if health != nil {
		health.SetReady(true)
	}

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
		err = <-errCh
	case err = <-errCh:
		if err != nil {
			log.WithError(err).Error("rpc server error")
		}
	}

	log.Info("shutting down")
	if err := rpcServer.Stop(); err != nil {
		log.WithError(err).Warn("error stopping rpc server")
	}

	if metricsServer != nil {
		health.Stop()
		collectors.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.WithError(err).Warn("error stopping metrics server")
		}
		shutdownCancel()
	}

	log.WithFields(logrus.Fields{
		"slot":      uint64(bank.Slot()),
		"bank_hash": bank.BankHash().String(),
		"accounts":  bank.AccountsCount(),
	}).Info("stopped")
	return err
}
