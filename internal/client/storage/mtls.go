package storage

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/atinyakov/GophKeychain/internal/certgen"
)

// Register asks the server at registerURL to enroll login and writes the
// returned certificate and key to dir/client.crt and dir/client.key.
func Register(registerURL, login, caPath, dir string) error {
	caPool, err := loadCAPool(caPath)
	if err != nil {
		return err
	}
	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12}},
		Timeout:   10 * time.Second,
	}

	b, err := json.Marshal(map[string]string{"login": login})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := client.Post(registerURL, "application/json", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", bytes.TrimSpace(data))
	}

	var certData map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certData); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if certData["cert"] == "" || certData["key"] == "" {
		return errors.New("server response carries no certificate")
	}
	return certgen.WritePair(
		filepath.Join(dir, "client.crt"),
		filepath.Join(dir, "client.key"),
		[]byte(certData["cert"]),
		[]byte(certData["key"]),
	)
}

// LoadClientCertificate builds an HTTP client that presents the given
// certificate and trusts only the given CA.
func LoadClientCertificate(certFile, keyFile, caFile string) (*http.Client, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert/key: %w", err)
	}
	caPool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      caPool,
			MinVersion:   tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport, Timeout: 10 * time.Second}, nil
}

// OwnerFromCertificate returns the Common Name of the PEM certificate in
// certFile, which is the keychain owner the server will see.
func OwnerFromCertificate(certFile string) (string, error) {
	data, err := os.ReadFile(certFile)
	if err != nil {
		return "", fmt.Errorf("read client cert: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return "", errors.New("invalid client cert PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parse client cert: %w", err)
	}
	return cert.Subject.CommonName, nil
}

func loadCAPool(caPath string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}
	return caPool, nil
}
