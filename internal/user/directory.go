package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// writeTimeout bounds a durable registration.
const writeTimeout = 5 * time.Second

var (
	// ErrDuplicateUsername is returned when registering a username that
	// already exists (case-sensitive exact match).
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrInvalidCredentials is returned for both an unknown username and a
	// wrong credential, so callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnknownUser is returned by lookups for unregistered usernames.
	ErrUnknownUser = errors.New("user not found")
)

// defaultStatus mirrors the users table default.
const defaultStatus = "Available"

// Directory is the durable registry of accounts. Writes are serialized by a
// mutex so the duplicate check and the insert are one atomic step; readers go
// straight to the database.
type Directory struct {
	mu sync.Mutex
	db *sql.DB
}

// NewDirectory creates a Directory backed by the given database.
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// Register creates a new account. The account is persisted before Register
// returns; on any persistence failure it is not visible to later lookups.
func (d *Directory) Register(username, credential string, profile Profile) (Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var taken bool
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM users WHERE username = ?", username).Scan(&taken)
	if err != nil {
		return Account{}, fmt.Errorf("user: register %q: %w", username, err)
	}
	if taken {
		return Account{}, ErrDuplicateUsername
	}

	if profile.Status == "" {
		profile.Status = defaultStatus
	}
	acct := Account{
		ID:         uuid.NewString(),
		Username:   username,
		Credential: credential,
		Profile:    profile,
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password, email, age, gender, mobile_number, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.Username, acct.Credential,
		acct.Email, acct.Age, acct.Gender, acct.MobileNumber, acct.Status,
	)
	if err != nil {
		return Account{}, fmt.Errorf("user: register %q: %w", username, err)
	}
	return acct, nil
}

// Verify returns the account if the username exists and the credential
// matches exactly, and ErrInvalidCredentials otherwise.
func (d *Directory) Verify(username, credential string) (Account, error) {
	acct, err := d.Get(username)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if acct.Credential != credential {
		return Account{}, ErrInvalidCredentials
	}
	return acct, nil
}

// Get returns the account for the given username, or ErrUnknownUser.
func (d *Directory) Get(username string) (Account, error) {
	row := d.db.QueryRow(`
		SELECT id, username, password, email, age, gender, mobile_number, status
		FROM users WHERE username = ?`, username)

	var acct Account
	err := row.Scan(
		&acct.ID, &acct.Username, &acct.Credential,
		&acct.Email, &acct.Age, &acct.Gender, &acct.MobileNumber, &acct.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrUnknownUser
	}
	if err != nil {
		return Account{}, fmt.Errorf("user: get %q: %w", username, err)
	}
	return acct, nil
}

// Exists reports whether the username is registered.
func (d *Directory) Exists(username string) (bool, error) {
	var found bool
	err := d.db.QueryRow("SELECT COUNT(*) > 0 FROM users WHERE username = ?", username).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("user: exists %q: %w", username, err)
	}
	return found, nil
}

// List returns every username in registration order.
func (d *Directory) List() ([]string, error) {
	rows, err := d.db.Query("SELECT username FROM users ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("user: list: %w", err)
	}
	defer rows.Close()

	usernames := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("user: list: %w", err)
		}
		usernames = append(usernames, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user: list: %w", err)
	}
	return usernames, nil
}
