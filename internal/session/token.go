package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

// TokenFile keeps the token in a small JSON file readable only by its owner.
type TokenFile struct {
	path string

	mu     sync.Mutex
	token  string
	loaded bool
}

type tokenData struct {
	AccessToken string `json:"access_token"`
}

func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Token returns "" when no token was saved or the file is unreadable.
func (f *TokenFile) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		f.token, _ = f.read()
		f.loaded = true
	}
	return f.token
}

func (f *TokenFile) SetToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.Marshal(tokenData{AccessToken: token})
	if err != nil {
		return err
	}

	// Write-then-rename so a crash never leaves a half-written token.
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	f.token = token
	f.loaded = true
	return nil
}

func (f *TokenFile) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.token = ""
	f.loaded = true
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func (f *TokenFile) read() (string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}
	var data tokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", err
	}
	return data.AccessToken, nil
}

// MemoryTokens is a TokenStore that forgets everything on exit.
type MemoryTokens struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryTokens) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *MemoryTokens) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokens) Clear() error {
	return m.SetToken("")
}
