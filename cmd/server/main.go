// Package main initializes and starts the GophKeychain HTTPS server,
// setting up configuration, logging, database connections, repositories,
// services, handlers, and TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	nethttp "net/http"

	"github.com/atinyakov/GophKeychain/internal/certgen"
	"github.com/atinyakov/GophKeychain/internal/config"
	"github.com/atinyakov/GophKeychain/internal/db"
	"github.com/atinyakov/GophKeychain/internal/logger"
	"github.com/atinyakov/GophKeychain/internal/repository"
	"github.com/atinyakov/GophKeychain/internal/server/handler/http"
	"github.com/atinyakov/GophKeychain/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db.StartSoftDeleteCleaner(ctx, postgresDB,
		options.CleanerInterval.Duration,
		options.Retention.Duration,
		zapLogger,
	)

	// The CA signs client certificates at registration and verifies them
	// on every other request.
	ca, err := certgen.LoadAuthority(options.CACert, options.CAKey)
	if err != nil {
		zapLogger.Fatal("failed to load CA", zap.Error(err))
	}

	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	keychainRepo := repository.NewPostgresKeychainRepository(postgresDB)

	authService := service.NewAuthService(authRepo)
	keychainService := service.NewKeychainService(keychainRepo, zapLogger)

	authHandler := &http.AuthHandler{AuthService: authService, Issuer: ca, Log: zapLogger}
	keychainHandler := &http.KeychainHandler{KeychainService: keychainService}

	router := http.NewRouter(authHandler, keychainHandler, zapLogger)

	cert, err := tls.LoadX509KeyPair(options.ServerCert, options.ServerKey)
	if err != nil {
		zapLogger.Fatal("failed to load server TLS cert/key", zap.Error(err))
	}
	caCertPool := x509.NewCertPool()
	caCertPool.AddCert(ca.Cert)

	// Registration happens before the client owns a certificate, so one is
	// verified when presented and CertAuth rejects its absence elsewhere.
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS12,
	}

	server := &nethttp.Server{
		Addr:      options.Port,
		Handler:   router,
		TLSConfig: tlsConfig,
	}

	zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
	if err := server.ListenAndServeTLS("", ""); err != nil {
		zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
	}
}
