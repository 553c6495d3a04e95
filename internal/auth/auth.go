// Package auth defines the sign-in collaborator the event store consults
// for record ownership. Only a local, configuration-backed provider lives
// here; remote identity providers plug in through the same interface.
package auth

import (
	"context"
	"errors"
	"sync"

	appLog "days/internal/log"
)

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

type Provider interface {
	// CurrentUser returns nil when nobody is signed in.
	CurrentUser(ctx context.Context) (*User, error)
	SignIn(ctx context.Context) (*User, error)
	SignOut(ctx context.Context) error
	// AuthHeader is the Authorization header value for remote calls, or ""
	// when there is nothing to send.
	AuthHeader(ctx context.Context) (string, error)
}

var ErrNoAccount = errors.New("auth: no account configured")

// LocalProvider signs in as a fixed, configured account.
type LocalProvider struct {
	account *User

	mu      sync.RWMutex
	current *User
}

// NewLocalProvider starts signed in when account is non-nil and has an ID.
func NewLocalProvider(account *User) *LocalProvider {
	p := &LocalProvider{}
	if account != nil && account.ID != "" {
		u := *account
		p.account = &u
		p.current = &u
	}
	return p
}

func (p *LocalProvider) CurrentUser(context.Context) (*User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, nil
	}
	u := *p.current
	return &u, nil
}

func (p *LocalProvider) SignIn(context.Context) (*User, error) {
	if p.account == nil {
		return nil, ErrNoAccount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.account
	p.current = &u
	appLog.Info("signed in", "user", u.ID)
	out := u
	return &out, nil
}

func (p *LocalProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		appLog.Info("signed out", "user", p.current.ID)
	}
	p.current = nil
	return nil
}

func (p *LocalProvider) AuthHeader(context.Context) (string, error) {
	return "", nil
}

// OwnerID adapts a Provider to the store's owner hook. Lookup failures are
// logged and treated as "nobody signed in".
func OwnerID(p Provider) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		if p == nil {
			return ""
		}
		u, err := p.CurrentUser(ctx)
		if err != nil {
			appLog.Warn("auth: current user lookup failed", "error", err.Error())
			return ""
		}
		if u == nil {
			return ""
		}
		return u.ID
	}
}
