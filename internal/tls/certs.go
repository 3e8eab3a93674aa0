// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package tls provides TLS certificate generation and loading for the
// accountd HTTP listener.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// EnsureServerCert makes sure a usable certificate pair exists at the
// given paths. When both files exist they are left untouched; when both
// are missing a self-signed ECDSA certificate for hosts is generated,
// which is enough for local development and for running behind a
// TLS-terminating proxy that only needs an internal hop encrypted.
// A half-present pair is an error rather than something to overwrite.
func EnsureServerCert(certFile, keyFile string, hosts []string) error {
	certExists := fileExists(certFile)
	keyExists := fileExists(keyFile)

	switch {
	case certExists && keyExists:
		return nil
	case certExists != keyExists:
		return oops.Code("TLS_CERT_PAIR_INCOMPLETE").
			With("cert", certFile).
			With("key", keyFile).
			Errorf("one of the certificate pair files exists without the other")
	}

	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}

	cert, key, err := generateSelfSigned(hosts)
	if err != nil {
		return err
	}
	if err := saveCert(certFile, cert); err != nil {
		return err
	}
	return saveKey(keyFile, key)
}

// generateSelfSigned creates a one-year self-signed server certificate
// covering hosts.
func generateSelfSigned(hosts []string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, oops.Code("TLS_KEYGEN_FAILED").Wrap(err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, oops.Code("TLS_KEYGEN_FAILED").Wrap(err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"accountd"},
			CommonName:   hosts[0],
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, oops.Code("TLS_CERT_FAILED").Wrap(err)
	}
	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, nil, oops.Code("TLS_CERT_FAILED").Wrap(err)
	}

	return cert, key, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// saveCert saves a certificate to a PEM file.
func saveCert(path string, cert *x509.Certificate) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}); err != nil {
		_ = f.Close()
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// saveKey saves an ECDSA private key to a PEM file.
func saveKey(path string, key *ecdsa.PrivateKey) error {
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := pem.Encode(f, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		_ = f.Close()
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
