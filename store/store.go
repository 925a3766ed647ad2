// Package store holds the backend credential pair across restarts.
//
// The pair is an opaque bag: nothing in the client parses or validates the
// token contents. Only the login/logout flows and the token-refresh protocol
// write the store; every other component just reads it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenPair is the credential pair issued by the backend. Both fields are
// replaced together on login and refresh, and cleared together on logout or
// session expiry.
type TokenPair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// Store is readable synchronously at request-construction time. Write and
// Clear never fail from the caller's point of view; persistence problems are
// diagnostic only.
type Store interface {
	Read() (TokenPair, bool)
	Write(TokenPair)
	Clear()
}

// ResolvePath picks the token file location: the -statepath flag first, then
// the VOX_STATE_PATH environment variable, then the OS config directory.
func ResolvePath(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("VOX_STATE_PATH")} {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) {
			return p, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, p), nil
	}

	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(cfg, "vox", "tokens.json"), nil
}

// File is the disk-backed Store. The pair is cached in memory so Read never
// touches the filesystem.
type File struct {
	path string

	mu   sync.Mutex
	pair TokenPair
	ok   bool

	// onError receives persistence failures; wired to the diagnostic log.
	onError func(err error)
}

func Open(path string, onError func(error)) *File {
	s := &File{path: path, onError: onError}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.report(fmt.Errorf("reading token file: %w", err))
		}
		return s
	}
	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		s.report(fmt.Errorf("parsing token file: %w", err))
		return s
	}
	if pair.Access != "" || pair.Refresh != "" {
		s.pair = pair
		s.ok = true
	}
	return s
}

func (s *File) Read() (TokenPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, s.ok
}

func (s *File) Write(pair TokenPair) {
	s.mu.Lock()
	s.pair = pair
	s.ok = true
	s.mu.Unlock()

	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		s.report(err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		s.report(fmt.Errorf("creating state dir: %w", err))
		return
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		s.report(fmt.Errorf("writing token file: %w", err))
	}
}

func (s *File) Clear() {
	s.mu.Lock()
	s.pair = TokenPair{}
	s.ok = false
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.report(fmt.Errorf("removing token file: %w", err))
	}
}

func (s *File) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// Mem is an in-memory Store for tests.
type Mem struct {
	mu   sync.Mutex
	pair TokenPair
	ok   bool
}

func (s *Mem) Read() (TokenPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, s.ok
}

func (s *Mem) Write(pair TokenPair) {
	s.mu.Lock()
	s.pair = pair
	s.ok = true
	s.mu.Unlock()
}

func (s *Mem) Clear() {
	s.mu.Lock()
	s.pair = TokenPair{}
	s.ok = false
	s.mu.Unlock()
}
