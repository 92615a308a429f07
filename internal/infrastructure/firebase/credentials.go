package firebase

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredentials means no service account was configured anywhere.
var ErrNoCredentials = errors.New("firebase: no service account credentials")

// ServiceAccount is the subset of a Google service account key file the
// service needs.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`

	raw []byte
}

// LoadServiceAccount reads credentials from, in order: the key file, a raw
// JSON string, a base64 encoded JSON string. A missing file is skipped.
func LoadServiceAccount(file, rawJSON, b64 string) (*ServiceAccount, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		switch {
		case err == nil:
			return ParseServiceAccount(b)
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("firebase: read %s: %w", file, err)
		}
	}
	if strings.TrimSpace(rawJSON) != "" {
		return ParseServiceAccount([]byte(rawJSON))
	}
	if strings.TrimSpace(b64) != "" {
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
		if err != nil {
			return nil, fmt.Errorf("firebase: decode base64 service account: %w", err)
		}
		return ParseServiceAccount(b)
	}
	return nil, ErrNoCredentials
}

func ParseServiceAccount(b []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(b, &sa); err != nil {
		return nil, fmt.Errorf("firebase: parse service account: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("firebase: service account needs client_email and private_key")
	}
	sa.raw = b
	return &sa, nil
}

func (sa *ServiceAccount) RSAKey() (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("firebase: parse private key: %w", err)
	}
	return key, nil
}

// JSON returns the original key file bytes.
func (sa *ServiceAccount) JSON() []byte { return sa.raw }
