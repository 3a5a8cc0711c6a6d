package accountpool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangavault/core/pkg/remoteclient"
)

type fakeRegistrar struct {
	mu        sync.Mutex
	registers int
	logins    int
	tokenSeq  int
}

func (f *fakeRegistrar) Register(ctx context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	return nil
}

func (f *fakeRegistrar) Login(ctx context.Context, username, password string) (remoteclient.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	f.tokenSeq++
	return remoteclient.LoginResult{Token: username + "-token"}, nil
}

func TestAcquireRegistersANewAccountWhenPoolIsEmpty(t *testing.T) {
	dir := t.TempDir()
	registrar := &fakeRegistrar{}
	pool, err := Load(dir, registrar)
	require.NoError(t, err)

	acct, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, acct.Token())
	assert.Equal(t, 1, registrar.registers)
	assert.Equal(t, 1, registrar.logins)
	assert.Equal(t, 1, pool.Size())
}

func TestAcquireReusesAnAvailableAccountWithoutRegistering(t *testing.T) {
	dir := t.TempDir()
	registrar := &fakeRegistrar{}
	pool, err := Load(dir, registrar)
	require.NoError(t, err)

	first, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	second, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Token(), second.Token())
	assert.Equal(t, 1, registrar.registers)
}

func TestMarkLimitedMakesAccountUnavailableUntilCoolDownElapses(t *testing.T) {
	dir := t.TempDir()
	registrar := &fakeRegistrar{}
	pool, err := Load(dir, registrar)
	require.NoError(t, err)

	acct, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.MarkLimited(context.Background(), acct))

	second, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, acct.Token(), second.Token(), "limited account must not be reissued")
	assert.Equal(t, 2, registrar.registers)
}

func TestLoadReadsPersistedPool(t *testing.T) {
	dir := t.TempDir()
	accounts := []*Account{{Username: "u1", Password: "p1", TokenStr: "t1"}}
	data, err := json.Marshal(accounts)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "account_pool.json"), data, 0o644))

	registrar := &fakeRegistrar{}
	pool, err := Load(dir, registrar)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Size())

	acct, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t1", acct.Token())
	assert.Zero(t, registrar.registers, "a persisted available account must not trigger a new registration")
}

func TestLoadWithNoExistingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	registrar := &fakeRegistrar{}
	pool, err := Load(dir, registrar)
	require.NoError(t, err)
	assert.Zero(t, pool.Size())
}

func TestAcquirePersistsNewlyRegisteredAccountToDisk(t *testing.T) {
	dir := t.TempDir()
	registrar := &fakeRegistrar{}
	pool, err := Load(dir, registrar)
	require.NoError(t, err)

	_, err = pool.Acquire(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "account_pool.json"))
	require.NoError(t, err)
	var onDisk []*Account
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Len(t, onDisk, 1)
	assert.NotEmpty(t, onDisk[0].TokenStr)
}
