package auth

import (
	"os"
	"time"
)

const (
	envCookie    = "DYCRAWLER_COOKIE"
	envUserAgent = "DYCRAWLER_USER_AGENT"
)

// EnvironmentStore exposes DYCRAWLER_COOKIE as a read-only profile
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Profile) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment profile under any requested name
func (e *EnvironmentStore) Retrieve(name string) (*Profile, error) {
	cookie := os.Getenv(envCookie)
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = "env"
	}
	return &Profile{
		Name:      name,
		Cookie:    cookie,
		UserAgent: os.Getenv(envUserAgent),
		// stored profiles of the same name win in Manager.List
		LastModified: time.Time{},
	}, nil
}

// List returns the environment profile if one is set
func (e *EnvironmentStore) List() ([]*Profile, error) {
	p, err := e.Retrieve("env")
	if err != nil {
		return []*Profile{}, nil
	}
	return []*Profile{p}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists reports whether DYCRAWLER_COOKIE is set
func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(envCookie) != ""
}
