package secretkv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrNotFound = errors.New("secret not found")

type Provider interface {
	// Get a secret version, version <= 0 means latest
	Get(ctx context.Context, key string, version int) (Payload, error)
	List(ctx context.Context, key string) ([]Payload, error)
}

type Payload struct {
	Key       string
	Version   int
	CreatedAt time.Time
	Payload   []byte
	Meta      map[string]any
}

// Resolve reads the secret named by ref, "name" for the latest version or "name@3".
func Resolve(ctx context.Context, p Provider, ref string) (string, error) {
	key, version, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	payload, err := p.Get(ctx, key, version)
	if err != nil {
		return "", fmt.Errorf("resolving secret %v: %w", ref, err)
	}

	return strings.TrimSpace(string(payload.Payload)), nil
}

func ParseRef(ref string) (key string, version int, err error) {
	key, v, ok := strings.Cut(ref, "@")
	if key == "" {
		return "", 0, fmt.Errorf("empty secret reference %q", ref)
	}
	if !ok || v == "latest" {
		return key, 0, nil
	}

	version, err = strconv.Atoi(v)
	if err != nil {
		return "", 0, fmt.Errorf("invalid version in secret reference %q", ref)
	}
	return key, version, nil
}
