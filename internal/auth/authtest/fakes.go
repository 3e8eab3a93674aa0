// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package authtest provides in-memory fakes for the auth repositories
// and side-effect ports.
package authtest

import (
	"context"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wildboar/accountd/internal/auth"
)

// Tx is a TxRunner that runs the function directly. The in-memory
// stores have no transactions to join.
type Tx struct{}

// InTx runs fn with the given context.
func (Tx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// UserStore is an in-memory UserRepository. It stores copies, so
// mutations to a loaded user are invisible until Update.
type UserStore struct {
	users map[ulid.ULID]*auth.User

	// FailWith, when non-nil, is returned by every method.
	FailWith error
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[ulid.ULID]*auth.User)}
}

// Add seeds a user, bypassing uniqueness checks.
func (s *UserStore) Add(user *auth.User) {
	s.users[user.ID] = cloneUser(user)
}

// Create implements UserRepository.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	if s.holderOf(auth.NormalizeEmail(user.Email), user.ID) != nil {
		return auth.ErrEmailTaken
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

// GetByID implements UserRepository.
func (s *UserStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	user, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneUser(user), nil
}

// GetByEmail implements UserRepository. Either slot matches.
func (s *UserStore) GetByEmail(_ context.Context, addr string) (*auth.User, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	user := s.holderOf(auth.NormalizeEmail(addr), ulid.ULID{})
	if user == nil {
		return nil, auth.ErrNotFound
	}
	return cloneUser(user), nil
}

// EmailInUse implements UserRepository.
func (s *UserStore) EmailInUse(_ context.Context, addr string) (bool, error) {
	if s.FailWith != nil {
		return false, s.FailWith
	}
	return s.holderOf(auth.NormalizeEmail(addr), ulid.ULID{}) != nil, nil
}

// Update implements UserRepository.
func (s *UserStore) Update(_ context.Context, user *auth.User) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	if _, ok := s.users[user.ID]; !ok {
		return auth.ErrNotFound
	}
	if s.holderOf(auth.NormalizeEmail(user.Email), user.ID) != nil {
		return auth.ErrEmailTaken
	}
	if user.BackupEmail != "" && s.holderOf(auth.NormalizeEmail(user.BackupEmail), user.ID) != nil {
		return auth.ErrEmailTaken
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

// Delete implements UserRepository.
func (s *UserStore) Delete(_ context.Context, id ulid.ULID) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// Count returns the number of stored users.
func (s *UserStore) Count() int {
	return len(s.users)
}

// holderOf returns the user occupying addr in either slot, excluding
// the given ID. A zero exclude matches every user.
func (s *UserStore) holderOf(addr string, exclude ulid.ULID) *auth.User {
	if addr == "" {
		return nil
	}
	for _, u := range s.users {
		if u.ID.Compare(exclude) == 0 {
			continue
		}
		if auth.NormalizeEmail(u.Email) == addr {
			return u
		}
		if u.BackupEmail != "" && auth.NormalizeEmail(u.BackupEmail) == addr {
			return u
		}
	}
	return nil
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	return &c
}

// CodeStore is an in-memory CodeRepository.
type CodeStore struct {
	codes []*auth.VerificationCode

	// FailWith, when non-nil, is returned by every method.
	FailWith error
}

// NewCodeStore creates an empty CodeStore.
func NewCodeStore() *CodeStore {
	return &CodeStore{}
}

// Insert implements CodeRepository.
func (s *CodeStore) Insert(_ context.Context, code *auth.VerificationCode) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.codes = append(s.codes, cloneCode(code))
	return nil
}

// LatestActive implements CodeRepository.
func (s *CodeStore) LatestActive(_ context.Context, userID ulid.ULID, purpose auth.Purpose) (*auth.VerificationCode, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	now := time.Now()
	latest := s.latest(func(c *auth.VerificationCode) bool {
		return c.UserID.Compare(userID) == 0 && c.Purpose == purpose &&
			!c.IsUsed && c.ExpiresAt.After(now)
	})
	if latest == nil {
		return nil, auth.ErrNotFound
	}
	return cloneCode(latest), nil
}

// GetByValueForUpdate implements CodeRepository.
func (s *CodeStore) GetByValueForUpdate(_ context.Context, userID ulid.ULID, purpose auth.Purpose, code string) (*auth.VerificationCode, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	latest := s.latest(func(c *auth.VerificationCode) bool {
		return c.UserID.Compare(userID) == 0 && c.Purpose == purpose && c.Code == code
	})
	if latest == nil {
		return nil, auth.ErrNotFound
	}
	return cloneCode(latest), nil
}

// LatestUnusedForUpdate implements CodeRepository.
func (s *CodeStore) LatestUnusedForUpdate(_ context.Context, userID ulid.ULID, purpose auth.Purpose) (*auth.VerificationCode, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	latest := s.latest(func(c *auth.VerificationCode) bool {
		return c.UserID.Compare(userID) == 0 && c.Purpose == purpose && !c.IsUsed
	})
	if latest == nil {
		return nil, auth.ErrNotFound
	}
	return cloneCode(latest), nil
}

// Update implements CodeRepository.
func (s *CodeStore) Update(_ context.Context, code *auth.VerificationCode) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	for _, c := range s.codes {
		if c.ID.Compare(code.ID) == 0 {
			c.IsUsed = code.IsUsed
			c.Attempts = code.Attempts
			return nil
		}
	}
	return auth.ErrNotFound
}

// Last returns a copy of the most recently inserted code, or nil.
func (s *CodeStore) Last() *auth.VerificationCode {
	if len(s.codes) == 0 {
		return nil
	}
	return cloneCode(s.codes[len(s.codes)-1])
}

// Count returns the number of stored code rows.
func (s *CodeStore) Count() int {
	return len(s.codes)
}

// Backdate shifts a stored code's CreatedAt into the past. Tests use it
// to age a code past the issue cooldown or its expiry.
func (s *CodeStore) Backdate(id ulid.ULID, by time.Duration) {
	for _, c := range s.codes {
		if c.ID.Compare(id) == 0 {
			c.CreatedAt = c.CreatedAt.Add(-by)
			c.ExpiresAt = c.ExpiresAt.Add(-by)
			return
		}
	}
}

func (s *CodeStore) latest(match func(*auth.VerificationCode) bool) *auth.VerificationCode {
	ordered := make([]*auth.VerificationCode, len(s.codes))
	copy(ordered, s.codes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	for _, c := range ordered {
		if match(c) {
			return c
		}
	}
	return nil
}

func cloneCode(c *auth.VerificationCode) *auth.VerificationCode {
	cp := *c
	return &cp
}

// SessionStore is an in-memory SessionRepository keyed by token hash.
type SessionStore struct {
	sessions map[string]*auth.Session

	// FailWith, when non-nil, is returned by every method.
	FailWith error
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*auth.Session)}
}

// Insert implements SessionRepository.
func (s *SessionStore) Insert(_ context.Context, session *auth.Session) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	cp := *session
	s.sessions[session.TokenHash] = &cp
	return nil
}

// GetByTokenHash implements SessionRepository.
func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

// Delete implements SessionRepository.
func (s *SessionStore) Delete(_ context.Context, tokenHash string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	if _, ok := s.sessions[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(s.sessions, tokenHash)
	return nil
}

// DeleteByUser implements SessionRepository.
func (s *SessionStore) DeleteByUser(_ context.Context, userID ulid.ULID, exceptTokenHash string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	for hash, session := range s.sessions {
		if session.UserID.Compare(userID) == 0 && hash != exceptTokenHash {
			delete(s.sessions, hash)
		}
	}
	return nil
}

// DeleteExpired implements SessionRepository.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	now := time.Now()
	var n int64
	for hash, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count() int {
	return len(s.sessions)
}

// CountForUser returns the number of sessions owned by a user.
func (s *SessionStore) CountForUser(userID ulid.ULID) int {
	n := 0
	for _, session := range s.sessions {
		if session.UserID.Compare(userID) == 0 {
			n++
		}
	}
	return n
}

// Expire forces a stored session's expiry into the past.
func (s *SessionStore) Expire(tokenHash string) {
	if session, ok := s.sessions[tokenHash]; ok {
		session.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// ResetStore is an in-memory ResetRepository keyed by token hash.
type ResetStore struct {
	resets map[string]*auth.PasswordResetSession

	// FailWith, when non-nil, is returned by every method.
	FailWith error
}

// NewResetStore creates an empty ResetStore.
func NewResetStore() *ResetStore {
	return &ResetStore{resets: make(map[string]*auth.PasswordResetSession)}
}

// Insert implements ResetRepository.
func (s *ResetStore) Insert(_ context.Context, reset *auth.PasswordResetSession) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	cp := *reset
	s.resets[reset.TokenHash] = &cp
	return nil
}

// GetByTokenHash implements ResetRepository.
func (s *ResetStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordResetSession, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	reset, ok := s.resets[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *reset
	return &cp, nil
}

// MarkUsed implements ResetRepository. Consuming an absent or already
// used row fails with ErrNotFound, mirroring the store's conditional
// update.
func (s *ResetStore) MarkUsed(_ context.Context, tokenHash string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	reset, ok := s.resets[tokenHash]
	if !ok || reset.IsUsed {
		return auth.ErrNotFound
	}
	reset.IsUsed = true
	return nil
}

// Expire forces a stored reset session's expiry into the past.
func (s *ResetStore) Expire(tokenHash string) {
	if reset, ok := s.resets[tokenHash]; ok {
		reset.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// SentMail records one delivered code.
type SentMail struct {
	To      string
	Purpose auth.Purpose
	Code    string
	Lang    string
}

// Mailbox is a CodeMailer that records every send.
type Mailbox struct {
	Sent []SentMail

	// FailWith, when non-nil, fails every send.
	FailWith error
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// SendCode implements CodeMailer.
func (m *Mailbox) SendCode(_ context.Context, to string, purpose auth.Purpose, code, lang string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Sent = append(m.Sent, SentMail{To: to, Purpose: purpose, Code: code, Lang: lang})
	return nil
}

// Last returns the most recent send, or a zero SentMail.
func (m *Mailbox) Last() SentMail {
	if len(m.Sent) == 0 {
		return SentMail{}
	}
	return m.Sent[len(m.Sent)-1]
}

// Wallets is a WalletProvisioner that records every call.
type Wallets struct {
	Provisioned []ulid.ULID

	// FailWith, when non-nil, fails every provision.
	FailWith error
}

// NewWallets creates an empty Wallets.
func NewWallets() *Wallets {
	return &Wallets{}
}

// Provision implements WalletProvisioner.
func (w *Wallets) Provision(_ context.Context, userID ulid.ULID) error {
	if w.FailWith != nil {
		return w.FailWith
	}
	w.Provisioned = append(w.Provisioned, userID)
	return nil
}

// Verify interfaces are satisfied.
var (
	_ auth.TxRunner          = Tx{}
	_ auth.UserRepository    = (*UserStore)(nil)
	_ auth.CodeRepository    = (*CodeStore)(nil)
	_ auth.SessionRepository = (*SessionStore)(nil)
	_ auth.ResetRepository   = (*ResetStore)(nil)
	_ auth.CodeMailer        = (*Mailbox)(nil)
	_ auth.WalletProvisioner = (*Wallets)(nil)
)
