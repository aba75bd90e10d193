// Package urlguard decides whether a URL is well formed and safe to redirect to.
// It rejects non-http(s) schemes, embedded credentials and any host that is or
// resolves to a private, loopback, link-local, multicast or reserved address.
package urlguard

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	ReasonInvalidURL      = "Invalid URL"
	ReasonInvalidScheme   = "Invalid protocol"
	ReasonCredentials     = "URL with authentication is not allowed"
	ReasonPrivateIP       = "Private or invalid IP address"
	ReasonNoResolve       = "Domain does not resolve"
	ReasonDNSError        = "DNS resolution error"
	ReasonResolvesPrivate = "Domain resolves to private IP address"
)

const defaultTimeout = 3 * time.Second

// Result is the outcome of a single validation. Transient is set when the URL
// was rejected only because DNS could not answer; it says nothing about the
// URL itself.
type Result struct {
	Valid     bool
	Reason    string
	Transient bool
}

func ok() Result { return Result{Valid: true} }

func reject(reason string) Result { return Result{Reason: reason} }

// Validator checks URLs. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	resolver Resolver
	timeout  time.Duration
}

// New returns a Validator using resolver for host lookups. Each Validate call
// bounds its DNS work by timeout.
func New(resolver Resolver, timeout time.Duration) *Validator {
	if resolver == nil {
		resolver = NewNetResolver(nil)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Validator{resolver: resolver, timeout: timeout}
}

// Validate runs the checks in order and stops at the first failure.
func (v *Validator) Validate(ctx context.Context, raw string) Result {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return reject(ReasonInvalidURL)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return reject(ReasonInvalidScheme)
	}

	if u.User != nil {
		return reject(ReasonCredentials)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return reject(ReasonInvalidURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !IsPublic(addr) {
			return reject(ReasonPrivateIP)
		}
		return ok()
	}

	return v.checkDomain(ctx, host)
}

func (v *Validator) checkDomain(ctx context.Context, host string) Result {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var v4, v6 []netip.Addr
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addrs, err := lookup(gctx, v.resolver.LookupA, host)
		v4 = addrs
		return err
	})
	g.Go(func() error {
		addrs, err := lookup(gctx, v.resolver.LookupAAAA, host)
		v6 = addrs
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{Reason: ReasonDNSError, Transient: true}
	}

	if len(v4) == 0 && len(v6) == 0 {
		return reject(ReasonNoResolve)
	}

	for _, addrs := range [][]netip.Addr{v4, v6} {
		for _, addr := range addrs {
			if !IsPublic(addr) {
				return reject(ReasonResolvesPrivate)
			}
		}
	}
	return ok()
}

func lookup(ctx context.Context, fn func(context.Context, string) ([]netip.Addr, error), host string) ([]netip.Addr, error) {
	addrs, err := fn(ctx, host)
	if errors.Is(err, ErrNoRecords) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", host, err)
	}
	return addrs, nil
}

// Canonical lowercases the scheme and host of an already validated URL.
func Canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
