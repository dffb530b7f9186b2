package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"epochpay/config"
	"epochpay/core"
	"epochpay/native/distribution"
	"epochpay/observability/logging"
	"epochpay/rpc"
	"epochpay/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("EPOCHPAY_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup("epochpayd", env)

	var bootParams *distribution.Params
	params, err := cfg.Distribution.Params()
	if err != nil {
		// A fresh default file has no treasury yet; the node still starts so
		// operators can install parameters over RPC.
		logger.Warn("distribution parameters not installed from config", slog.Any("error", err))
	} else {
		bootParams = &params
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, clockwork.NewRealClock(), logger, bootParams)
	if err != nil {
		logger.Error("Failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.MetricsAddress != "" && cfg.MetricsAddress != cfg.RPCAddress {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("starting metrics server", slog.String("addr", cfg.MetricsAddress))
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(node, cfg.RPCAuthToken, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
