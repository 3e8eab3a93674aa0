// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package wallet provisions the per-user wallet record created when an
// account completes registration.
package wallet

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/store"
)

// SealKeySize is the secretbox key length in bytes.
const SealKeySize = 32

// DefaultChain is recorded on provisioned wallets.
const DefaultChain = "ethereum"

// Provisioner creates wallet rows. At most one wallet per (user, chain)
// ever exists: a repeat call is a no-op against the unique constraint.
// Runs inside the ambient transaction when one is open, so registration
// confirmation stays atomic.
type Provisioner struct {
	db      *store.DB
	chain   string
	sealKey [SealKeySize]byte
}

// NewProvisioner creates a Provisioner. sealKeyHex is the hex-encoded
// 32-byte key that seals private keys at rest.
func NewProvisioner(db *store.DB, chain, sealKeyHex string) (*Provisioner, error) {
	raw, err := hex.DecodeString(sealKeyHex)
	if err != nil || len(raw) != SealKeySize {
		return nil, oops.Code("WALLET_BAD_SEAL_KEY").
			Errorf("seal key must be %d hex-encoded bytes", SealKeySize)
	}
	if chain == "" {
		chain = DefaultChain
	}
	p := &Provisioner{db: db, chain: chain}
	copy(p.sealKey[:], raw)
	return p, nil
}

// Provision creates the user's wallet if it does not exist yet. The
// insert is ON CONFLICT DO NOTHING, so concurrent or repeated
// provisioning converges on the first row without error.
func (p *Provisioner) Provision(ctx context.Context, userID ulid.ULID) error {
	privateKey := make([]byte, 32)
	if _, err := rand.Read(privateKey); err != nil {
		return oops.Code("WALLET_KEYGEN_FAILED").
			With("operation", "generate private key").
			Wrap(err)
	}

	// The address form is derived here; real chain derivation lives
	// with the downstream wallet system.
	digest := sha256.Sum256(privateKey)
	address := "0x" + hex.EncodeToString(digest[12:])

	sealed, err := p.seal(privateKey)
	if err != nil {
		return err
	}

	_, err = p.db.Querier(ctx).Exec(ctx, `
		INSERT INTO user_wallets (id, user_id, chain, address, sealed_private_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, chain) DO NOTHING
	`,
		ulid.Make().String(),
		userID.String(),
		p.chain,
		address,
		sealed,
	)
	if err != nil {
		return oops.Code("WALLET_PROVISION_FAILED").
			With("operation", "insert wallet").
			With("user_id", userID.String()).
			With("chain", p.chain).
			Wrap(err)
	}
	return nil
}

// seal encrypts a private key with secretbox under the configured key.
// Output is base64(nonce || ciphertext).
func (p *Provisioner) seal(privateKey []byte) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", oops.Code("WALLET_SEAL_FAILED").
			With("operation", "generate nonce").
			Wrap(err)
	}
	sealed := secretbox.Seal(nonce[:], privateKey, &nonce, &p.sealKey)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Compile-time interface check.
var _ auth.WalletProvisioner = (*Provisioner)(nil)
