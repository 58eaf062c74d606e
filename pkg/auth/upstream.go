// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// UpstreamAuthenticator defines the interface for authentication methods used
// when communicating with upstream services. Each implementation is responsible
// for modifying the HTTP request to include the necessary authentication
// credentials.
type UpstreamAuthenticator interface {
	// Authenticate modifies the given HTTP request to add authentication
	// information, such as headers or basic auth credentials.
	Authenticate(req *http.Request) error
}

// URLAuthenticator is implemented by authenticators whose only effect is on
// the request URL. Callers that rewrite the URL afterwards, for example to go
// through a proxy, apply them to the upstream URL first.
type URLAuthenticator interface {
	AuthenticateURL(u *url.URL)
}

// NewUpstreamAuthenticator creates an UpstreamAuthenticator for a security
// scheme declared in the document, using the credentials configured for it.
// Schemes that are not applied on the request (oauth2, openIdConnect,
// TC3 signing) yield a nil authenticator.
func NewUpstreamAuthenticator(name string, scheme *openapi3.SecurityScheme, creds Credentials) (UpstreamAuthenticator, error) {
	if scheme == nil || name == TC3SchemeName {
		return nil, nil
	}

	switch scheme.Type {
	case "apiKey":
		value := creds.APIKey
		if value == "" {
			value = creds.Token
		}
		if scheme.Name == "" || value == "" {
			return nil, fmt.Errorf("%s: API key authentication requires a parameter name and a key: %w", name, ErrMissingCredentials)
		}
		switch scheme.In {
		case "query":
			return &APIKeyQueryAuth{ParamName: scheme.Name, Value: value}, nil
		case "cookie":
			return &APIKeyCookieAuth{CookieName: scheme.Name, Value: value}, nil
		default:
			return &APIKeyAuth{HeaderName: scheme.Name, HeaderValue: value}, nil
		}
	case "http":
		switch strings.ToLower(scheme.Scheme) {
		case "bearer":
			if creds.Token == "" {
				return nil, fmt.Errorf("%s: bearer token authentication requires a token: %w", name, ErrMissingCredentials)
			}
			return &BearerTokenAuth{Token: creds.Token}, nil
		case "basic":
			if creds.Username == "" {
				return nil, fmt.Errorf("%s: basic authentication requires a username: %w", name, ErrMissingCredentials)
			}
			return &BasicAuth{Username: creds.Username, Password: creds.Password}, nil
		}
	}
	return nil, nil
}

// APIKeyAuth implements UpstreamAuthenticator for API key-based authentication.
// It adds a specified header with a static API key value to the request.
type APIKeyAuth struct {
	HeaderName  string
	HeaderValue string
}

// Authenticate adds the configured API key to the request's header.
func (a *APIKeyAuth) Authenticate(req *http.Request) error {
	req.Header.Set(a.HeaderName, a.HeaderValue)
	return nil
}

// APIKeyQueryAuth passes an API key as a query parameter.
type APIKeyQueryAuth struct {
	ParamName string
	Value     string
}

// Authenticate adds the API key to the request URL.
func (a *APIKeyQueryAuth) Authenticate(req *http.Request) error {
	a.AuthenticateURL(req.URL)
	return nil
}

// AuthenticateURL adds the API key to u.
func (a *APIKeyQueryAuth) AuthenticateURL(u *url.URL) {
	q := u.Query()
	q.Set(a.ParamName, a.Value)
	u.RawQuery = q.Encode()
}

// APIKeyCookieAuth passes an API key as a cookie.
type APIKeyCookieAuth struct {
	CookieName string
	Value      string
}

// Authenticate adds the API key cookie.
func (a *APIKeyCookieAuth) Authenticate(req *http.Request) error {
	req.AddCookie(&http.Cookie{Name: a.CookieName, Value: a.Value})
	return nil
}

// BearerTokenAuth implements UpstreamAuthenticator for bearer token-based
// authentication. It adds an "Authorization" header with a bearer token.
type BearerTokenAuth struct {
	Token string
}

// Authenticate adds the bearer token to the request's "Authorization" header.
func (b *BearerTokenAuth) Authenticate(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// BasicAuth implements UpstreamAuthenticator for basic HTTP authentication.
// It adds an "Authorization" header with the username and password.
type BasicAuth struct {
	Username string
	Password string
}

// Authenticate sets the request's basic authentication credentials.
func (b *BasicAuth) Authenticate(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}
