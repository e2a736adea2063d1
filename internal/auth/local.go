package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"plantkeeper/internal/blob"
)

// AccountsKey is the blob key holding registered accounts.
const AccountsKey = "auth/accounts.json"

type account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Hash  []byte `json:"hash"`
}

// LocalProvider issues sessions for registered and anonymous users. Passwords
// are stored as bcrypt hashes and tokens are random and opaque. Accounts are
// written to a blob store when one is attached; sessions live in memory only.
type LocalProvider struct {
	mu       sync.Mutex
	accounts map[string]account
	sessions map[string]Session
	cost     int
	store    blob.Store
}

// LocalOption configures a LocalProvider.
type LocalOption func(*LocalProvider)

// WithBcryptCost overrides the hashing cost.
func WithBcryptCost(cost int) LocalOption {
	return func(p *LocalProvider) { p.cost = cost }
}

// NewLocalProvider constructs an empty provider.
func NewLocalProvider(opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		accounts: make(map[string]account),
		sessions: make(map[string]Session),
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OpenLocalProvider loads the accounts saved in store and writes every new
// registration back to it.
func OpenLocalProvider(ctx context.Context, store blob.Store, opts ...LocalOption) (*LocalProvider, error) {
	p := NewLocalProvider(opts...)
	p.store = store
	data, err := blob.ReadAll(ctx, store, AccountsKey)
	if errors.Is(err, blob.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	var accounts []account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	for _, acct := range accounts {
		p.accounts[normalizeEmail(acct.Email)] = acct
	}
	return p, nil
}

// SignInAnonymously issues a session for a fresh user id.
func (p *LocalProvider) SignInAnonymously(context.Context) (Session, error) {
	return p.issue(uuid.NewString(), "", true), nil
}

// Register creates an account and signs it in.
func (p *LocalProvider) Register(ctx context.Context, email, password string) (Session, error) {
	key := normalizeEmail(email)
	if key == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email and password required", ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	p.mu.Lock()
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return Session{}, ErrAccountExists
	}
	acct := account{ID: uuid.NewString(), Email: key, Hash: hash}
	p.accounts[key] = acct
	if err := p.saveLocked(ctx); err != nil {
		delete(p.accounts, key)
		p.mu.Unlock()
		return Session{}, err
	}
	p.mu.Unlock()
	return p.issue(acct.ID, acct.Email, false), nil
}

// SignInWithEmailPassword checks the password against the stored hash.
func (p *LocalProvider) SignInWithEmailPassword(_ context.Context, email, password string) (Session, error) {
	p.mu.Lock()
	acct, ok := p.accounts[normalizeEmail(email)]
	p.mu.Unlock()
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.Hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("compare password: %w", err)
	}
	return p.issue(acct.ID, acct.Email, false), nil
}

// saveLocked writes every account to the attached store. p.mu must be held.
func (p *LocalProvider) saveLocked(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	accounts := make([]account, 0, len(p.accounts))
	for _, acct := range p.accounts {
		accounts = append(accounts, acct)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	if _, err := blob.PutBytes(ctx, p.store, AccountsKey, data, "application/json"); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}

// Logout revokes token. Unknown tokens are ignored.
func (p *LocalProvider) Logout(_ context.Context, token string) error {
	p.mu.Lock()
	delete(p.sessions, token)
	p.mu.Unlock()
	return nil
}

// VerifyToken implements Verifier for tokens issued by this provider.
func (p *LocalProvider) VerifyToken(_ context.Context, token string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[token]
	if !ok {
		return "", ErrInvalidCredentials
	}
	return sess.UserID, nil
}

func (p *LocalProvider) issue(userID, email string, anonymous bool) Session {
	sess := Session{UserID: userID, Token: uuid.NewString(), Email: email, Anonymous: anonymous}
	p.mu.Lock()
	p.sessions[sess.Token] = sess
	p.mu.Unlock()
	return sess
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
