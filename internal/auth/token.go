// Package auth resolves the bearer token presented to the realtime
// service.
package auth

import (
	"fmt"
	"os"
	"strings"
)

// Prefixes understood by ResolveToken.
const (
	envPrefix  = "env:"
	filePrefix = "file:"
)

// ResolveToken interprets a token spec and returns the bearer token.
//
//   - "env:NAME" reads the NAME environment variable
//   - "file:PATH" reads PATH and trims surrounding whitespace
//   - anything else is the token itself
//
// An empty spec resolves to an empty token without error; the
// connection manager reports missing credentials at connect time.
func ResolveToken(spec string) (string, error) {
	switch {
	case strings.HasPrefix(spec, envPrefix):
		name := strings.TrimPrefix(spec, envPrefix)
		if name == "" {
			return "", fmt.Errorf("token spec %q names no environment variable", spec)
		}
		tok := os.Getenv(name)
		if tok == "" {
			return "", fmt.Errorf("environment variable %s is empty", name)
		}
		return tok, nil

	case strings.HasPrefix(spec, filePrefix):
		path := strings.TrimPrefix(spec, filePrefix)
		if path == "" {
			return "", fmt.Errorf("token spec %q names no file", spec)
		}
		return readTokenFile(path)

	default:
		return spec, nil
	}
}

func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return tok, nil
}
