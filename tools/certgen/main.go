// Package main bootstraps the mutual TLS material of a GophKeychain
// deployment: a CA, a server certificate and, optionally, a client
// certificate for one keychain owner.
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/GophKeychain/internal/certgen"
)

type options struct {
	dir      string
	hosts    string
	owner    string
	validity time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.dir, "dir", "certs", "output directory")
	flag.StringVar(&opts.hosts, "hosts", "localhost,127.0.0.1", "comma-separated server DNS names and IPs")
	flag.StringVar(&opts.owner, "owner", "", "also issue a client certificate for this keychain owner")
	flag.DurationVar(&opts.validity, "validity", certgen.DefaultValidity, "leaf certificate validity")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Certificates generated into %s\n", opts.dir)
}

// run writes ca.crt/ca.key, server.crt/server.key and, when an owner is
// given, client.crt/client.key into opts.dir.
func run(opts options) error {
	ca, err := certgen.NewAuthority("GophKeychain CA", 10*365*24*time.Hour)
	if err != nil {
		return err
	}
	ca.Validity = opts.validity
	if err := ca.Save(filepath.Join(opts.dir, "ca.crt"), filepath.Join(opts.dir, "ca.key")); err != nil {
		return err
	}

	var hosts []string
	for _, h := range strings.Split(opts.hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	certPEM, keyPEM, err := ca.IssueServer(hosts...)
	if err != nil {
		return fmt.Errorf("server certificate: %w", err)
	}
	if err := certgen.WritePair(filepath.Join(opts.dir, "server.crt"), filepath.Join(opts.dir, "server.key"), certPEM, keyPEM); err != nil {
		return err
	}

	if opts.owner == "" {
		return nil
	}
	certPEM, keyPEM, err = ca.IssueClient(opts.owner)
	if err != nil {
		return fmt.Errorf("client certificate: %w", err)
	}
	return certgen.WritePair(filepath.Join(opts.dir, "client.crt"), filepath.Join(opts.dir, "client.key"), certPEM, keyPEM)
}
