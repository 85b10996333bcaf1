// Package main is the GophKeychain command-line client. It enrolls a
// keychain owner with the server and runs an interactive shell over a
// local encrypted store or the operating system keyring.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/GophKeychain/internal/client/storage"
	"github.com/atinyakov/GophKeychain/internal/logger"
	"github.com/atinyakov/GophKeychain/internal/repository"
	"github.com/atinyakov/GophKeychain/internal/service"
	"go.uber.org/zap"
)

const (
	apiRegister = "/api/register"

	keyringService = "gophkeychain"
)

var (
	version   string
	buildDate string
)

type options struct {
	cmd      string
	baseURL  string
	certFile string
	keyFile  string
	caFile   string
	login    string
	dir      string
	store    string
	backend  string
	interval time.Duration
	logLevel string
}

// main parses command-line flags and dispatches to the register or shell commands.
func main() {
	var (
		opts    options
		showVer bool
	)
	flag.StringVar(&opts.cmd, "cmd", "", "command: register | shell")
	flag.StringVar(&opts.baseURL, "url", "https://localhost:8080", "server base URL")
	flag.StringVar(&opts.certFile, "cert", "client.crt", "path to client cert")
	flag.StringVar(&opts.keyFile, "key", "client.key", "path to client key")
	flag.StringVar(&opts.caFile, "ca", "certs/ca.crt", "path to CA cert")
	flag.StringVar(&opts.login, "login", "", "username for registration")
	flag.StringVar(&opts.dir, "dir", ".", "directory the registration writes client.crt and client.key to")
	flag.StringVar(&opts.store, "store", storage.DefaultFile, "path to the local keychain file")
	flag.StringVar(&opts.backend, "backend", "file", "item store: file | keyring")
	flag.DurationVar(&opts.interval, "sync", 30*time.Second, "background sync interval, 0 disables it")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("GophKeychain Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	switch opts.cmd {
	case "register":
		if opts.login == "" {
			log.Fatal("please provide -login=username")
		}
		if err := storage.Register(strings.TrimSuffix(opts.baseURL, "/")+apiRegister, opts.login, opts.caFile, opts.dir); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Registered %s, credentials written to %s\n", opts.login, opts.dir)
	case "shell":
		if err := runShell(opts); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown command: %s", opts.cmd)
	}
}

func runShell(opts options) error {
	l := logger.New()
	if err := l.Init(opts.logLevel); err != nil {
		return err
	}
	defer func() { _ = l.Log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sh := &shell{
		owner:  opts.login,
		prompt: storage.NewPrompter(os.Stdin, os.Stdout),
		out:    os.Stdout,
	}

	switch opts.backend {
	case "keyring":
		if sh.owner == "" {
			owner, err := storage.OwnerFromCertificate(opts.certFile)
			if err != nil {
				return fmt.Errorf("keyring backend needs -login or a client certificate: %w", err)
			}
			sh.owner = owner
		}
		sh.svc = service.NewKeychainService(repository.NewKeyringRepository(keyringService), l.Log)
	case "file":
		client, err := storage.LoadClientCertificate(opts.certFile, opts.keyFile, opts.caFile)
		if err != nil {
			return err
		}
		if sh.owner, err = storage.OwnerFromCertificate(opts.certFile); err != nil {
			return err
		}
		keyPEM, err := os.ReadFile(opts.keyFile)
		if err != nil {
			return fmt.Errorf("read client key: %w", err)
		}
		aead, err := storage.NewAEADFromKeyPEM(keyPEM)
		if err != nil {
			return err
		}
		ls := storage.NewLocalStorage(filepath.Clean(opts.store), storage.NewSealer(aead))
		if err := ls.Load(); err != nil {
			return err
		}
		sh.svc = service.NewKeychainService(ls, l.Log)
		sh.syncer = &storage.Syncer{Client: client, BaseURL: opts.baseURL, Store: ls, Log: l.Log}
	default:
		return fmt.Errorf("unknown backend: %s", opts.backend)
	}

	sh.creds = service.NewCredentials(sh.svc, sh.owner)
	if err := sh.unlock(ctx); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	if sh.syncer != nil {
		storage.StartAutoSync(ctx, sh.syncer, opts.interval)
	}

	l.Log.Debug("shell started", zap.String("owner", sh.owner), zap.String("backend", opts.backend))
	return sh.run(ctx)
}
