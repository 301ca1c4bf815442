package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret value using the *_FILE convention.
// If envName+"_FILE" is set, reads the secret from that file path.
// Otherwise falls back to the value of envName.
// Returns empty string if neither is set.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		path, err := ExpandPath(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to expand %s=%s: %w", fileEnv, filePath, err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}

	return os.Getenv(envName), nil
}

// Secrets are the credentials the engine reads at startup.
type Secrets struct {
	BackendToken string
	AdminUser    string
	AdminPass    string
	OperatorUser string
	OperatorPass string
}

// LoadSecrets resolves every CADENCE_* secret. The first unreadable secret
// file fails the whole load.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	for _, f := range []struct {
		env string
		dst *string
	}{
		{"CADENCE_BACKEND_TOKEN", &s.BackendToken},
		{"CADENCE_ADMIN_USER", &s.AdminUser},
		{"CADENCE_ADMIN_PASS", &s.AdminPass},
		{"CADENCE_OPERATOR_USER", &s.OperatorUser},
		{"CADENCE_OPERATOR_PASS", &s.OperatorPass},
	} {
		v, err := ResolveSecret(f.env)
		if err != nil {
			return Secrets{}, err
		}
		*f.dst = v
	}
	return s, nil
}
