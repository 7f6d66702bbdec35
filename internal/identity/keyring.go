package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hedisam/txledger/internal/account"
)

// Account is a named signing key held by the wallet.
type Account struct {
	Name string
	Key  *account.Key
}

func (a *Account) Address() string {
	return a.Key.Address()
}

type keyringFile struct {
	Accounts []keyringEntry `yaml:"accounts"`
}

type keyringEntry struct {
	Name string `yaml:"name"`
	// Seed is the hex encoded ed25519 seed.
	Seed string `yaml:"seed"`
}

// NewAccount generates a fresh account.
func NewAccount(name string) (*Account, error) {
	key, err := account.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Account{Name: name, Key: key}, nil
}

// LoadKeyring reads the accounts stored in the yaml keyring at path. A missing file is an empty keyring.
func LoadKeyring(path string) ([]*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	var f keyringFile
	err = yaml.Unmarshal(data, &f)
	if err != nil {
		return nil, fmt.Errorf("parse keyring %q: %w", path, err)
	}

	accounts := make([]*Account, 0, len(f.Accounts))
	for i, entry := range f.Accounts {
		seed, err := hex.DecodeString(strings.TrimPrefix(entry.Seed, "0x"))
		if err != nil {
			return nil, fmt.Errorf("keyring account %d (%s): seed is not hex: %w", i, entry.Name, err)
		}
		key, err := account.NewKeyFromSeed(seed)
		if err != nil {
			return nil, fmt.Errorf("keyring account %d (%s): %w", i, entry.Name, err)
		}
		accounts = append(accounts, &Account{Name: entry.Name, Key: key})
	}

	return accounts, nil
}

// SaveKeyring writes accounts to path, readable by the owner only.
func SaveKeyring(path string, accounts []*Account) error {
	f := keyringFile{Accounts: make([]keyringEntry, 0, len(accounts))}
	for _, acc := range accounts {
		f.Accounts = append(f.Accounts, keyringEntry{
			Name: acc.Name,
			Seed: hex.EncodeToString(acc.Key.Seed()),
		})
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encode keyring: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keyring directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}
