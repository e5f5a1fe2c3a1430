package chatclient

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// TokenSource provides the bearer token attached when the socket connects.
type TokenSource interface {
	Token() (string, error)
}

// Credential keys tried in order, first match wins. The older names are
// still written by previous releases of the web app.
var credentialKeys = []string{"chat_auth_token", "auth_token", "access_token", "token"}

// ErrNoCredential is returned when no credential key holds a token.
var ErrNoCredential = errors.New("no chat credential found")

// FileTokenSource reads the token from a JSON credential file, trying each
// legacy key name in turn. The file is re-read per call so rotated
// credentials are picked up without restarting.
type FileTokenSource struct {
	Path string
}

func (s *FileTokenSource) Token() (string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}

	var creds map[string]string
	if err := json.Unmarshal(raw, &creds); err != nil {
		return "", err
	}

	for _, key := range credentialKeys {
		if tok := strings.TrimSpace(creds[key]); tok != "" {
			return tok, nil
		}
	}
	return "", ErrNoCredential
}

// StaticTokenSource returns the same token on every call.
type StaticTokenSource string

func (s StaticTokenSource) Token() (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}
