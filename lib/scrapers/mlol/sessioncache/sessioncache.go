// Package sessioncache pools authenticated mlol clients per account so
// callers serving many users don't redo the login and library id
// discovery on every request.
package sessioncache

import (
	"context"
	"fmt"
	"time"

	"mlol-client/lib/scrapers/mlol"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CredentialSource resolves the password for a (username, domain) pair.
type CredentialSource interface {
	GetPassword(ctx context.Context, username, domain string) (string, error)
}

type Options struct {
	Credentials CredentialSource
	// BaseURL, APIBaseURL and MappingPath are passed through to every
	// constructed client. Tests point them at local doubles.
	BaseURL     string
	APIBaseURL  string
	MappingPath string
}

type Cache struct {
	cache *expirable.LRU[string, *mlol.Client]
	opts  Options
}

func New(opts Options) Cache {
	return Cache{
		cache: expirable.NewLRU[string, *mlol.Client](2048, nil, time.Minute*15),
		opts:  opts,
	}
}

// Get returns a live client for the account, constructing and
// authenticating one on a cache miss. Construction failures are not
// cached, the next call retries.
func (s Cache) Get(ctx context.Context, username, domain string) (*mlol.Client, error) {
	key := fmt.Sprintf("%s@%s", username, domain)

	cached, hit := s.cache.Get(key)
	if hit {
		return cached, nil
	}

	password, err := s.opts.Credentials.GetPassword(ctx, username, domain)
	if err != nil {
		return nil, err
	}

	client, err := mlol.NewClient(ctx, mlol.ClientOptions{
		Domain:      domain,
		Username:    username,
		Password:    password,
		MappingPath: s.opts.MappingPath,
		BaseURL:     s.opts.BaseURL,
		APIBaseURL:  s.opts.APIBaseURL,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Add(key, client)
	return client, nil
}
