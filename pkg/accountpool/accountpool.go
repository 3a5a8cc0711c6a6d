// Package accountpool maintains the set of disposable accounts used solely
// to authorize get_chapter requests, insulating the primary user account
// from the remote's anti-abuse rate limiting (spec §4.2). It implements
// remoteclient.AccountSource.
package accountpool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mangavault/core/pkg/remoteclient"
)

// coolDown is how long an account stays unavailable after being marked
// limited (spec §3: "available iff now − limited_at ≥ cool_down_seconds").
const coolDown = 5 * time.Minute

// Registrar is the subset of remoteclient.Client used to mint new disposable
// credentials, kept narrow so accountpool doesn't need the full client
// surface to compile against.
type Registrar interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (remoteclient.LoginResult, error)
}

// Account is one disposable credential. It satisfies remoteclient.Account.
type Account struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	TokenStr  string `json:"token"`
	LimitedAt int64  `json:"limitedAt"`
}

// Token implements remoteclient.Account.
func (a *Account) Token() string { return a.TokenStr }

func (a *Account) available(now time.Time) bool {
	return now.Sub(time.Unix(a.LimitedAt, 0)) >= coolDown
}

// Pool is a persistent, concurrency-safe set of Accounts. Lookups take a
// read lock; register_new and mark_limited take the exclusive lock. The
// exclusive section may suspend on the registrar's network calls, so
// callers must not hold any other lock across Acquire (spec §5).
type Pool struct {
	mu         sync.RWMutex
	accounts   []*Account
	path       string
	registrar  Registrar
	generateID func() (string, error)
}

// Load reads account_pool.json from appDataDir, starting with an empty
// pool if absent.
func Load(appDataDir string, registrar Registrar) (*Pool, error) {
	path := filepath.Join(appDataDir, "account_pool.json")
	p := &Pool{path: path, registrar: registrar, generateID: generateUUID}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("read account pool %q: %w", path, err)
	}
	if err := json.Unmarshal(raw, &p.accounts); err != nil {
		return nil, fmt.Errorf("parse account pool %q: %w", path, err)
	}
	return p, nil
}

// Acquire implements remoteclient.AccountSource's access protocol: try a
// read-locked lookup; on miss, upgrade to the exclusive lock and re-check
// before registering (double-checked locking, preventing a registration
// stampede under burst load — spec §4.2, §9).
func (p *Pool) Acquire(ctx context.Context) (remoteclient.Account, error) {
	if acct := p.getAvailable(); acct != nil {
		return acct, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if acct := p.firstAvailableLocked(time.Now()); acct != nil {
		return acct, nil
	}
	return p.registerNewLocked(ctx)
}

func (p *Pool) getAvailable() *Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.firstAvailableLocked(time.Now())
}

// firstAvailableLocked requires the caller to hold either lock.
func (p *Pool) firstAvailableLocked(now time.Time) *Account {
	for _, acct := range p.accounts {
		if acct.available(now) {
			return acct
		}
	}
	return nil
}

// registerNewLocked requires the caller to hold the exclusive lock. It
// generates a fresh credential pair, registers and logs in against the
// remote, appends the result, and persists the pool.
func (p *Pool) registerNewLocked(ctx context.Context) (*Account, error) {
	id, err := p.generateID()
	if err != nil {
		return nil, fmt.Errorf("generate disposable credential: %w", err)
	}
	username := "mv_" + id
	password := id

	if err := p.registrar.Register(ctx, username, password); err != nil {
		return nil, fmt.Errorf("register disposable account: %w", err)
	}
	result, err := p.registrar.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login disposable account: %w", err)
	}

	acct := &Account{Username: username, Password: password, TokenStr: result.Token}
	p.accounts = append(p.accounts, acct)
	if err := p.saveLocked(); err != nil {
		return nil, err
	}
	return acct, nil
}

// MarkLimited implements remoteclient.AccountSource: records limited_at for
// acct and persists the pool.
func (p *Pool) MarkLimited(ctx context.Context, acct remoteclient.Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, candidate := range p.accounts {
		if candidate.Token() == acct.Token() {
			candidate.LimitedAt = time.Now().Unix()
			return p.saveLocked()
		}
	}
	return nil
}

// saveLocked requires the caller to hold the exclusive lock.
func (p *Pool) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create app data dir: %w", err)
	}
	data, err := json.MarshalIndent(p.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal account pool: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write account pool %q: %w", p.path, err)
	}
	return nil
}

// Size returns the number of accounts currently held, used by tests and
// diagnostics.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.accounts)
}

func generateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
