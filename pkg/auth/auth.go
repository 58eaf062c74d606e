// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package auth authenticates outgoing upstream requests: request signing with
// the TC3-HMAC-SHA256 scheme, and the plain API key, bearer and basic schemes.
package auth

import (
	"errors"
)

// ErrMissingCredentials is returned when a scheme is used without the
// credential fields it requires.
var ErrMissingCredentials = errors.New("missing credentials")

// Credentials are the values configured for one security scheme under
// x-request-config.auth.<SchemeName>. Each scheme reads only the fields it
// needs.
type Credentials struct {
	SecretID  string `yaml:"secretId"`
	SecretKey string `yaml:"secretKey"`
	Token     string `yaml:"token"`
	Service   string `yaml:"service"`
	Region    string `yaml:"region"`
	Action    string `yaml:"action"`
	Version   string `yaml:"version"`

	APIKey   string `yaml:"apiKey"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Map applies fn to every credential field and returns the result. It is used
// to resolve templates in configured secrets.
func (c Credentials) Map(fn func(string) (string, error)) (Credentials, error) {
	fields := []*string{
		&c.SecretID, &c.SecretKey, &c.Token, &c.Service, &c.Region, &c.Action, &c.Version,
		&c.APIKey, &c.Username, &c.Password,
	}
	for _, f := range fields {
		if *f == "" {
			continue
		}
		v, err := fn(*f)
		if err != nil {
			return Credentials{}, err
		}
		*f = v
	}
	return c, nil
}
