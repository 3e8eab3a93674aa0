// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wildboar/accountd/internal/auth"
	"github.com/wildboar/accountd/internal/auth/authtest"
)

// testPassword satisfies every password policy rule.
const testPassword = "Str0ng!pass"

// hashCache memoizes argon2id hashes so repeated fixtures don't redo
// the expensive key derivation.
var hashCache = map[string]string{}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	if hash, ok := hashCache[password]; ok {
		return hash
	}
	hash, err := auth.NewArgon2idHasher().Hash(password)
	require.NoError(t, err)
	hashCache[password] = hash
	return hash
}

// fixture wires every service against the in-memory fakes.
type fixture struct {
	users    *authtest.UserStore
	codes    *authtest.CodeStore
	sessions *authtest.SessionStore
	resets   *authtest.ResetStore
	mailbox  *authtest.Mailbox
	wallets  *authtest.Wallets
	hasher   *auth.Argon2idHasher

	codeSvc    *auth.CodeService
	sessionSvc *auth.SessionService
	accounts   *auth.AccountService
	flows      *auth.Service
	recovery   *auth.RecoveryService
}

func newFixture() *fixture {
	f := &fixture{
		users:    authtest.NewUserStore(),
		codes:    authtest.NewCodeStore(),
		sessions: authtest.NewSessionStore(),
		resets:   authtest.NewResetStore(),
		mailbox:  authtest.NewMailbox(),
		wallets:  authtest.NewWallets(),
		hasher:   auth.NewArgon2idHasher(),
	}
	tx := authtest.Tx{}
	f.codeSvc = auth.NewCodeService(f.codes, tx)
	f.sessionSvc = auth.NewSessionService(f.sessions, f.users, tx)
	f.accounts = auth.NewAccountService(f.users, f.codeSvc, f.mailbox, tx)
	f.flows = auth.NewService(f.users, f.codeSvc, f.sessionSvc, f.hasher, f.mailbox, f.wallets, tx)
	f.recovery = auth.NewRecoveryService(f.users, f.codeSvc, f.sessionSvc, f.resets, f.hasher, f.mailbox, tx)
	return f
}

// addUser seeds an active user with a verified primary address.
func (f *fixture) addUser(t *testing.T, email string) *auth.User {
	t.Helper()
	user := auth.NewUser(email, hashPassword(t, testPassword))
	user.IsEmailVerified = true
	f.users.Add(user)
	return user
}

// reload fetches the stored state of a user.
func (f *fixture) reload(t *testing.T, user *auth.User) *auth.User {
	t.Helper()
	fresh, err := f.users.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	return fresh
}
