package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harrylevesque/orderscan/internal/api"
	"github.com/harrylevesque/orderscan/internal/auth"
	"github.com/harrylevesque/orderscan/internal/certs"
	"github.com/harrylevesque/orderscan/internal/config"
	"github.com/harrylevesque/orderscan/internal/files"
	"github.com/harrylevesque/orderscan/internal/metrics"
	"github.com/harrylevesque/orderscan/internal/monitor"
	"github.com/harrylevesque/orderscan/internal/orders"
	"github.com/harrylevesque/orderscan/internal/shopify"
	"github.com/harrylevesque/orderscan/internal/utils"
)

const (
	shutdownTimeout  = 15 * time.Second
	limiterIdle      = 10 * time.Minute
	certExpiryNotice = 14 * 24 * time.Hour
)

func main() {
	envFile := flag.String("env", ".env", "env file to load before reading the environment")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, "orderscan server:", err)
		os.Exit(1)
	}
}

// writeTimeout leaves room to write the response after the request deadline
// has cut upstream work short.
func writeTimeout(cfg *config.Config) time.Duration {
	d := cfg.RequestTimeout
	if d <= 0 {
		d = time.Duration(cfg.UpstreamMaxRetries+1)*cfg.UpstreamTimeout + shutdownTimeout
	}
	return d + 10*time.Second
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	masterKey, err := files.ReadMasterKey(cfg.MasterKeyHex, utils.ResolvePath(cfg.MasterKeyFile))
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}
	if masterKey == nil {
		logger.Warn("no session master key configured; sessions are stored in plaintext")
	}
	sessions := files.NewSessionStore(utils.SessionDir(cfg.DataDir), masterKey)
	qrStore := files.NewQRCodeStore(utils.QRStorePath(cfg.DataDir))

	client := shopify.NewClient(shopify.ClientConfig{
		APIVersion:        cfg.APIVersion,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.UpstreamTimeout,
		MaxRetries:        cfg.UpstreamMaxRetries,
		RequestsPerSecond: cfg.UpstreamRPS,
		Logger:            logger,
	})

	svc := orders.NewService(client, logger)
	server := api.NewServer(api.Deps{
		Config:  cfg,
		Logger:  logger,
		Orders:  svc,
		Parser:  svc.Parser(),
		QRStore: qrStore,
		Auth:    auth.NewAuthenticator(cfg, sessions, client, logger),
		Metrics: metrics.New(shopify.Collectors()...),
		Monitor: monitor.New(),
	})

	stop := make(chan struct{})
	defer close(stop)
	server.Limiter().StartCleanup(limiterIdle, stop)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       120 * time.Second,
	}

	var tlsEnabled bool
	if cfg.TLSCertFile != "" {
		cm := certs.NewCertManager(cfg.TLSCertFile, cfg.TLSKeyFile)
		leaf, err := cm.Load()
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
		if cm.ExpiresWithin(certExpiryNotice) {
			logger.WithField("not_after", leaf.NotAfter).Warn("TLS certificate expires soon")
		}
		srv.TLSConfig = cm.TLSConfig()
		tlsEnabled = true
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":        cfg.ListenAddr,
			"tls":         tlsEnabled,
			"api_version": client.APIVersion(),
			"debug":       cfg.DebugEnabled(),
		}).Info("orderscan server listening")

		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case s := <-sig:
		logger.WithField("signal", s.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
