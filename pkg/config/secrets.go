package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultSecretsFile = ".secrets"

// placeholder marks values copied from the secrets template but never filled in.
const placeholder = "ENTER_KEY"

// ErrMissingAPIKey is returned by Validate when no usable completion key exists.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is missing or invalid")

// Secrets holds credentials for the remote services.
type Secrets struct {
	OpenAIKey string
	HFToken   string
}

// LoadSecrets reads credentials from the env-style file at path. Values absent
// from the file fall back to the process environment. The process environment
// itself is never modified.
func LoadSecrets(path string) (Secrets, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Secrets{}, fmt.Errorf("secrets file %q not found: %w", path, err)
		}
		return Secrets{}, fmt.Errorf("read secrets: %w", err)
	}

	lookup := func(key string) string {
		if v := strings.TrimSpace(vars[key]); v != "" {
			return v
		}
		return strings.TrimSpace(os.Getenv(key))
	}

	return Secrets{
		OpenAIKey: lookup("OPENAI_API_KEY"),
		HFToken:   lookup("HF_TOKEN"),
	}, nil
}

// Validate returns ErrMissingAPIKey if the completion key is unusable, and a
// list of non-fatal warnings otherwise.
func (s Secrets) Validate() (warnings []string, err error) {
	if s.OpenAIKey == "" || strings.Contains(s.OpenAIKey, placeholder) {
		return nil, ErrMissingAPIKey
	}
	if s.HFToken == "" || strings.Contains(s.HFToken, placeholder) {
		warnings = append(warnings, "HF_TOKEN is possibly missing or invalid; pushing to the hub might fail")
	}
	return warnings, nil
}

// UsableHFToken returns the hub token unless it is empty or a placeholder.
func (s Secrets) UsableHFToken() string {
	if strings.Contains(s.HFToken, placeholder) {
		return ""
	}
	return s.HFToken
}
