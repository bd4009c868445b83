// internal/state/watchlist.go
package state

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/birdwatch/internal/types"
)

// WatchList is a JSON-file-backed ordered list of monitored accounts.
// Accounts keep the order they were added in; cycles always process them in
// that order.
type WatchList struct {
	path string
	mu   sync.RWMutex
}

// NewWatchList creates a file-backed WatchList at the given file path.
func NewWatchList(path string) *WatchList {
	return &WatchList{path: path}
}

// Path returns the file path used by this store.
func (w *WatchList) Path() string {
	return w.path
}

// Load returns all watched accounts in stored order. Returns an empty slice
// if the file doesn't exist.
func (w *WatchList) Load() ([]types.Account, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	accounts, err := w.load()
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		return []types.Account{}, nil
	}
	return accounts, nil
}

// Add appends a normalized account. Returns an error if the name normalizes
// to empty or the account is already watched.
func (w *WatchList) Add(name string) (types.Account, error) {
	account := types.NormalizeAccount(name)
	if account == "" {
		return "", fmt.Errorf("empty account name")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	accounts, err := w.load()
	if err != nil {
		return "", err
	}
	for _, existing := range accounts {
		if existing == account {
			return "", fmt.Errorf("account already watched: %s", account)
		}
	}

	accounts = append(accounts, account)
	if err := w.save(accounts); err != nil {
		return "", err
	}
	return account, nil
}

// Remove deletes an account from the list. The bool reports whether the
// account was present; absence is not an error.
func (w *WatchList) Remove(account types.Account) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	accounts, err := w.load()
	if err != nil {
		return false, err
	}

	for i, existing := range accounts {
		if existing == account {
			accounts = append(accounts[:i], accounts[i+1:]...)
			if err := w.save(accounts); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Import reads account names from r (one per line, "#" comments, an optional
// "username" header, and leading "@" all tolerated) and appends the ones not
// already watched. Returns the number of accounts added.
func (w *WatchList) Import(r io.Reader) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	accounts, err := w.load()
	if err != nil {
		return 0, err
	}
	existing := make(map[types.Account]bool, len(accounts))
	for _, a := range accounts {
		existing[a] = true
	}

	added := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		account := types.NormalizeAccount(line)
		if account == "" || account == "username" || existing[account] {
			continue
		}
		accounts = append(accounts, account)
		existing[account] = true
		added++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read import input: %w", err)
	}

	if added == 0 {
		return 0, nil
	}
	if err := w.save(accounts); err != nil {
		return 0, err
	}
	return added, nil
}

// load reads the JSON file and returns the account list. Returns nil if the
// file doesn't exist.
func (w *WatchList) load() ([]types.Account, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read watch-list file: %w", err)
	}

	var accounts []types.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal watch-list: %w", err)
	}
	return accounts, nil
}

// save writes the account list to disk using atomic write (temp file + rename).
func (w *WatchList) save(accounts []types.Account) error {
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal watch-list: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watch-list dir: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp watch-list file: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp watch-list file: %w", err)
	}
	return nil
}
