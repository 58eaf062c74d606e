// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	// TC3SchemeName is the security scheme name that turns on request signing.
	TC3SchemeName = "TC3HMAC"
	// TC3Algorithm is the algorithm tag written into the string to sign and the
	// Authorization header.
	TC3Algorithm = "TC3-HMAC-SHA256"
	// DefaultTC3Service is used when neither the credentials nor the host name
	// a service.
	DefaultTC3Service = "cvm"

	tc3RequestType  = "tc3_request"
	tc3ServiceHdr   = "x-tc-service"
	tc3ActionHdr    = "x-tc-action"
	tc3VersionHdr   = "x-tc-version"
	tc3RegionHdr    = "x-tc-region"
	tc3TimestampHdr = "x-tc-timestamp"
	tc3TokenHdr     = "x-tc-token"
)

// SignRequest is the canonical description of a request to sign.
type SignRequest struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    string
}

// TC3Signer signs requests with TC3-HMAC-SHA256.
type TC3Signer struct {
	now func() time.Time
}

// NewTC3Signer returns a signer using the wall clock.
func NewTC3Signer() *TC3Signer {
	return &TC3Signer{now: time.Now}
}

// NewTC3SignerWithClock returns a signer whose timestamps come from now.
func NewTC3SignerWithClock(now func() time.Time) *TC3Signer {
	return &TC3Signer{now: now}
}

// Sign returns the header set to send with req: the supplied headers plus the
// x-tc-* metadata and the Authorization header, keyed in canonical form.
func (s *TC3Signer) Sign(req SignRequest, creds Credentials) (map[string]string, error) {
	if creds.SecretID == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("%s signing requires secretId and secretKey: %w", TC3SchemeName, ErrMissingCredentials)
	}

	timestamp := s.now().Unix()
	ts := strconv.FormatInt(timestamp, 10)
	date := time.Unix(timestamp, 0).UTC().Format("2006-01-02")

	headers := make(map[string]string, len(req.Headers)+5)
	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = v
	}
	service := tc3Service(creds, headers["host"])

	setDefault := func(key, value string) {
		if _, ok := headers[key]; !ok && value != "" {
			headers[key] = value
		}
	}
	setDefault(tc3ActionHdr, creds.Action)
	setDefault(tc3VersionHdr, creds.Version)
	setDefault(tc3RegionHdr, creds.Region)
	headers[tc3TimestampHdr] = ts
	if creds.Token != "" {
		headers[tc3TokenHdr] = creds.Token
	}

	signed := lo.Filter([]string{"content-type", "host"}, func(k string, _ int) bool {
		_, ok := headers[k]
		return ok
	})
	var canonicalHeaders strings.Builder
	for _, k := range signed {
		canonicalHeaders.WriteString(k + ":" + strings.TrimSpace(headers[k]) + "\n")
	}
	signedHeaders := strings.Join(signed, ";")

	canonicalRequest := strings.Join([]string{
		strings.ToUpper(req.Method),
		"/",
		canonicalQuery(req.Query),
		canonicalHeaders.String(),
		signedHeaders,
		sha256Hex(req.Body),
	}, "\n")

	scope := date + "/" + service + "/" + tc3RequestType
	stringToSign := strings.Join([]string{TC3Algorithm, ts, scope, sha256Hex(canonicalRequest)}, "\n")

	secretDate := hmacSHA256([]byte("TC3"+creds.SecretKey), date)
	secretService := hmacSHA256(secretDate, service)
	secretSigning := hmacSHA256(secretService, tc3RequestType)
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		if k == tc3ServiceHdr {
			continue
		}
		out[http.CanonicalHeaderKey(k)] = v
	}
	out["Authorization"] = fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		TC3Algorithm, creds.SecretID, scope, signedHeaders, signature)
	return out, nil
}

func tc3Service(creds Credentials, host string) string {
	if creds.Service != "" {
		return creds.Service
	}
	if host != "" {
		if first, _, _ := strings.Cut(host, "."); first != "" {
			return first
		}
	}
	return DefaultTC3Service
}

// canonicalQuery sorts the query by key and percent-encodes keys and values
// the way encodeURIComponent does.
func canonicalQuery(query map[string]string) string {
	keys := lo.Keys(query)
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, uriComponent(k)+"="+uriComponent(query[k]))
	}
	return strings.Join(parts, "&")
}

var uriComponentReplacer = strings.NewReplacer("+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

func uriComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
