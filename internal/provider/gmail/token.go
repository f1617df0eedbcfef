package gmail

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// TokenStore persists the OAuth token to a file. Lifecycle: written on first
// consent, rewritten when a refresh yields a new token, deleted by the user
// to force re-authorization.
type TokenStore struct {
	path string
}

// NewTokenStore creates a store backed by the given file path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the backing file path.
func (s *TokenStore) Path() string { return s.path }

// Load reads the persisted token. A missing file is reported via os.IsNotExist.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	return tok, nil
}

// Save writes the token with owner-only permissions.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", s.path, err)
	}
	return nil
}

// persistingSource wraps an oauth2.TokenSource and saves every token that
// differs from the last one seen, so refreshed tokens survive the process.
type persistingSource struct {
	src   oauth2.TokenSource
	store *TokenStore
	last  string
}

func newPersistingSource(src oauth2.TokenSource, store *TokenStore, initial *oauth2.Token) *persistingSource {
	ps := &persistingSource{src: src, store: store}
	if initial != nil {
		ps.last = initial.AccessToken
	}
	return ps
}

func (ps *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := ps.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != ps.last {
		ps.last = tok.AccessToken
		if err := ps.store.Save(tok); err != nil {
			// A failed save is not fatal for the running batch; the next
			// run just repeats the refresh.
			return tok, nil
		}
	}
	return tok, nil
}
