package user

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmendes/chatwire/internal/storage"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDirectory(db)
}

func TestRegisterAndGetRoundtrip(t *testing.T) {
	d := newTestDirectory(t)

	profile := Profile{
		Email:        "alice@example.com",
		Age:          30,
		Gender:       "female",
		MobileNumber: "555-0100",
	}
	acct, err := d.Register("alice", "s3cret", profile)
	require.NoError(t, err)
	assert.NotEmpty(t, acct.ID)
	assert.Equal(t, "Available", acct.Status)

	got, err := d.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, "s3cret", got.Credential)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, 30, got.Age)
	assert.Equal(t, "female", got.Gender)
	assert.Equal(t, "555-0100", got.MobileNumber)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	d := newTestDirectory(t)

	first, err := d.Register("alice", "one", Profile{Email: "first@example.com"})
	require.NoError(t, err)

	_, err = d.Register("alice", "two", Profile{Email: "second@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	// The first account's data is unchanged.
	got, err := d.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "one", got.Credential)
	assert.Equal(t, "first@example.com", got.Email)
}

func TestRegisterIsCaseSensitive(t *testing.T) {
	d := newTestDirectory(t)

	_, err := d.Register("alice", "pw", Profile{})
	require.NoError(t, err)
	_, err = d.Register("Alice", "pw", Profile{})
	require.NoError(t, err)

	ok, err := d.Exists("ALICE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify(t *testing.T) {
	d := newTestDirectory(t)
	_, err := d.Register("alice", "s3cret", Profile{})
	require.NoError(t, err)

	acct, err := d.Verify("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Username)

	_, err = d.Verify("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown user yields the same error as a wrong credential.
	_, err = d.Verify("nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetUnknownUser(t *testing.T) {
	d := newTestDirectory(t)
	_, err := d.Get("ghost")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestListRegistrationOrder(t *testing.T) {
	d := newTestDirectory(t)
	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := d.Register(name, "pw", Profile{})
		require.NoError(t, err)
	}

	got, err := d.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice", "bob"}, got)
}

func TestConcurrentRegistrationSameUsername(t *testing.T) {
	for trial := 0; trial < 10; trial++ {
		d := newTestDirectory(t)

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = d.Register("alice", "pw", Profile{})
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
			} else {
				assert.ErrorIs(t, err, ErrDuplicateUsername)
			}
		}
		assert.Equal(t, 1, successes, "exactly one concurrent registration must win")
	}
}
