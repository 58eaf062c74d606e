// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mcpany/openapi-bridge/pkg/auth"
	"github.com/mcpany/openapi-bridge/pkg/client"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/mcpany/openapi-bridge/pkg/metrics"
	"github.com/mcpany/openapi-bridge/pkg/resilience"
	"github.com/mcpany/openapi-bridge/pkg/resolver"
	"github.com/mcpany/openapi-bridge/pkg/spec"
	"github.com/mcpany/openapi-bridge/pkg/transformer"
	"github.com/mcpany/openapi-bridge/pkg/util"
	"github.com/samber/lo"
)

const (
	contentTypeJSON = "application/json"
	// maxResponseBytes bounds how much of an upstream body is read.
	maxResponseBytes = 32 << 20
)

var (
	errMissingMethod  = errors.New("operation has no method")
	errMissingPath    = errors.New("operation has no path")
	errMissingBaseURL = errors.New("no base URL: set x-custom-base-url, x-request-config.baseUrl or servers")
)

// Response is the result of one invocation.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	// Data is the post-processed body: decoded JSON or text.
	Data any `json:"data"`
	// Raw is the upstream response. Its body has already been read and is
	// replaced by an in-memory copy.
	Raw *http.Response `json:"-"`
}

// Invoker executes tool calls against the upstream API of a document.
type Invoker struct {
	doc         *spec.Document
	client      client.HttpClient
	resolver    *resolver.Resolver
	signer      *auth.TC3Signer
	baseBackoff time.Duration
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithHTTPClient sets the client used for upstream requests.
func WithHTTPClient(c client.HttpClient) InvokerOption {
	return func(i *Invoker) { i.client = c }
}

// WithResolver sets the value resolver.
func WithResolver(r *resolver.Resolver) InvokerOption {
	return func(i *Invoker) { i.resolver = r }
}

// WithSigner sets the TC3 signer.
func WithSigner(s *auth.TC3Signer) InvokerOption {
	return func(i *Invoker) { i.signer = s }
}

// WithBaseBackoff sets the wait before the first retry. Later retries double it.
func WithBaseBackoff(d time.Duration) InvokerOption {
	return func(i *Invoker) { i.baseBackoff = d }
}

// NewInvoker creates an Invoker for doc.
func NewInvoker(doc *spec.Document, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		doc:         doc,
		baseBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(i)
	}
	if util.IsNil(i.client) {
		i.client = client.NewHTTPClient()
	}
	if i.resolver == nil {
		i.resolver = resolver.New()
	}
	if i.signer == nil {
		i.signer = auth.NewTC3Signer()
	}
	return i
}

// request is the per-call state built before the first attempt.
type request struct {
	method  string
	url     *url.URL
	headers map[string]string
	body    []byte
	authn   []auth.UpstreamAuthenticator
}

// Invoke calls the operation behind d with args.
func (i *Invoker) Invoke(ctx context.Context, d *Descriptor, args Arguments) (*Response, error) {
	start := time.Now()
	log := logging.GetLogger().With("tool", d.Name, "invocation", util.GenerateUUID())
	defer metrics.MeasureToolSince(metrics.InvokeLatency, d.Name, start)

	resp, err := i.invoke(ctx, log, d, args)
	if err != nil {
		metrics.IncrToolCounter(metrics.InvokeError, d.Name)
		log.Error("Tool invocation failed", "error", err)
		return nil, err
	}
	metrics.IncrToolCounter(metrics.InvokeSuccess, d.Name)
	log.Info("Tool invocation finished", "status", resp.Status, "duration", time.Since(start))
	return resp, nil
}

func (i *Invoker) invoke(ctx context.Context, log *slog.Logger, d *Descriptor, args Arguments) (*Response, error) {
	cfg := i.doc.Extensions.RequestConfig

	req, err := i.build(ctx, d, args, cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("Sending upstream request", "method", req.method, "url", redactURL(req.url), "headers", sortedHeaderNames(req.headers))

	var (
		attempts int
		result   *Response
	)
	retry := resilience.NewRetry(cfg.Retries,
		resilience.WithBaseBackoff(i.baseBackoff),
		resilience.WithNotify(func(err error, wait time.Duration) {
			metrics.IncrToolCounter(metrics.InvokeRetry, d.Name)
			log.Warn("Upstream request failed, retrying", "attempt", attempts, "wait", wait, "error", err)
		}),
	)
	timeout := resilience.NewTimeout(cfg.EffectiveTimeout())

	err = retry.Execute(ctx, func(ctx context.Context) error {
		attempts++
		return timeout.Execute(ctx, func(ctx context.Context) error {
			r, err := i.do(ctx, req)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		var perm *resilience.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, &InvocationError{Tool: d.Name, Attempts: attempts, Err: err}
	}

	data, err := transformer.Apply(result.Data, responseRules(i.doc.Extensions.ResponseConfig, d.Operation))
	if err != nil {
		return nil, fmt.Errorf("failed to post-process response of %s: %w", d.Name, err)
	}
	result.Data = data
	return result, nil
}

// build resolves the call's dynamic values and assembles everything that does
// not change between attempts.
func (i *Invoker) build(ctx context.Context, d *Descriptor, args Arguments, cfg spec.RequestConfig) (*request, error) {
	var opExt spec.OperationExtensions
	if d.Operation != nil {
		opExt = d.Operation.Extensions
	}

	method := strings.ToUpper(d.Method)
	switch {
	case method == "":
		return nil, &ConfigError{Tool: d.Name, Err: errMissingMethod}
	case d.Path == "":
		return nil, &ConfigError{Tool: d.Name, Err: errMissingPath}
	}
	base := lo.CoalesceOrEmpty(opExt.CustomBaseURL, cfg.BaseURL, i.serverURL())
	if base == "" {
		return nil, &ConfigError{Tool: d.Name, Err: errMissingBaseURL}
	}

	input := NewParams()
	for pair := args.InputParams.Oldest(); pair != nil; pair = pair.Next() {
		input.Set(pair.Key, pair.Value)
	}
	overrides := lo.Keys(d.SensitiveOverrides)
	sort.Strings(overrides)
	for _, k := range overrides {
		input.Set(k, d.SensitiveOverrides[k])
	}

	resolvedHeaders, env, err := i.resolver.ResolveHeaders(ctx, cfg.Headers, resolver.Env{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve headers: %w", err)
	}
	pathParams, inputParams, err := i.resolver.ResolveParams(ctx, args.PathParams, input, env)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parameters: %w", err)
	}

	headers := make(map[string]string, resolvedHeaders.Len())
	for pair := resolvedHeaders.Oldest(); pair != nil; pair = pair.Next() {
		setHeader(headers, pair.Key, pair.Value)
	}

	path, err := fillPath(d.Path, pathParams)
	if err != nil {
		return nil, &ConfigError{Tool: d.Name, Err: err}
	}
	path = remapPath(path, opExt.RemapPathToHeader, headers)

	target, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return nil, &ConfigError{Tool: d.Name, Err: fmt.Errorf("invalid URL: %w", err)}
	}

	req := &request{method: method, url: target, headers: headers}
	query := map[string]string{}
	if method == http.MethodGet {
		q := target.Query()
		for pair := inputParams.Oldest(); pair != nil; pair = pair.Next() {
			query[pair.Key] = util.ToString(pair.Value)
			q.Set(pair.Key, query[pair.Key])
		}
		target.RawQuery = q.Encode()
	} else if inputParams.Len() > 0 {
		if req.body, err = util.JSON.Marshal(inputParams); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		setHeader(headers, "Content-Type", contentTypeJSON)
	}

	if err := i.authenticate(ctx, req, path, query, cfg, env); err != nil {
		return nil, &ConfigError{Tool: d.Name, Err: err}
	}

	if cfg.Proxy != nil && cfg.Proxy.URL != "" {
		proxied, err := url.Parse(cfg.Proxy.URL)
		if err != nil {
			return nil, &ConfigError{Tool: d.Name, Err: fmt.Errorf("invalid proxy URL: %w", err)}
		}
		q := proxied.Query()
		q.Set(cfg.Proxy.ParamName(), req.url.String())
		proxied.RawQuery = q.Encode()
		req.url = proxied
	}
	return req, nil
}

// authenticate signs the request when the document declares the TC3 scheme and
// prepares authenticators for the other declared schemes that have
// credentials.
func (i *Invoker) authenticate(ctx context.Context, req *request, path string, query map[string]string, cfg spec.RequestConfig, env resolver.Env) error {
	if len(cfg.Auth) == 0 || i.doc.API == nil || i.doc.API.Components == nil {
		return nil
	}
	schemes := i.doc.API.Components.SecuritySchemes
	resolve := func(s string) (string, error) {
		return i.resolver.ResolveString(ctx, s, env)
	}

	names := lo.Keys(schemes)
	sort.Strings(names)
	for _, name := range names {
		raw, ok := cfg.Auth[name]
		if !ok || schemes[name] == nil {
			continue
		}
		creds, err := raw.Map(resolve)
		if err != nil {
			return fmt.Errorf("failed to resolve %s credentials: %w", name, err)
		}
		if name == auth.TC3SchemeName {
			signed, err := i.signer.Sign(auth.SignRequest{
				Method:  req.method,
				Path:    path,
				Query:   query,
				Headers: req.headers,
				Body:    string(req.body),
			}, creds)
			if err != nil {
				return err
			}
			req.headers = signed
			continue
		}
		authn, err := auth.NewUpstreamAuthenticator(name, schemes[name].Value, creds)
		if err != nil {
			return err
		}
		if urlAuthn, ok := authn.(auth.URLAuthenticator); ok {
			// Applied to the upstream URL now so that a proxy rewrite carries it
			// inside the target parameter.
			urlAuthn.AuthenticateURL(req.url)
			continue
		}
		if authn != nil {
			req.authn = append(req.authn, authn)
		}
	}
	return nil
}

// do performs one attempt. Only transport failures are returned as retryable
// errors; any HTTP status is a result.
func (i *Invoker) do(ctx context.Context, r *request) (*Response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, r.url.String(), body)
	if err != nil {
		return nil, &resilience.PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for k, v := range r.headers {
		// net/http sends Request.Host and ignores a Host header entry.
		if strings.EqualFold(k, "Host") {
			httpReq.Host = v
			continue
		}
		httpReq.Header.Set(k, v)
	}
	for _, a := range r.authn {
		if err := a.Authenticate(httpReq); err != nil {
			return nil, &resilience.PermanentError{Err: fmt.Errorf("failed to authenticate request: %w", err)}
		}
	}

	httpResp, err := i.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute http request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	httpResp.Body = io.NopCloser(bytes.NewReader(raw))

	return &Response{
		Status:     httpResp.StatusCode,
		StatusText: statusText(httpResp),
		Headers:    flattenHeaders(httpResp.Header),
		Data:       decodeBody(httpResp.Header.Get("Content-Type"), raw),
		Raw:        httpResp,
	}, nil
}

func (i *Invoker) serverURL() string {
	if i.doc.API == nil || len(i.doc.API.Servers) == 0 || i.doc.API.Servers[0] == nil {
		return ""
	}
	server := i.doc.API.Servers[0]
	u := server.URL
	for name, v := range server.Variables {
		if v != nil {
			u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
		}
	}
	return u
}

func fillPath(template string, params *Params) (string, error) {
	var missing []string
	path := template
	for _, name := range pathPlaceholders(template) {
		v, ok := params.Get(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(util.ToString(v)))
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing path parameters: %s", strings.Join(missing, ", "))
	}
	return path, nil
}

func pathPlaceholders(path string) []string {
	var names []string
	for {
		start := strings.IndexByte(path, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(path[start:], '}')
		if end < 0 {
			return names
		}
		if name := path[start+1 : start+end]; name != "" {
			names = append(names, name)
		}
		path = path[start+end+1:]
	}
}

// remapPath moves the leading segments of path into the named headers, in
// order, and returns what is left of the path.
func remapPath(path string, names []string, headers map[string]string) string {
	if len(names) == 0 {
		return path
	}
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	n := min(len(names), len(segments))
	for idx := 0; idx < n; idx++ {
		value, err := url.PathUnescape(segments[idx])
		if err != nil {
			value = segments[idx]
		}
		setHeader(headers, names[idx], value)
	}
	return "/" + strings.Join(segments[n:], "/")
}

// setHeader replaces every case variant of key.
func setHeader(headers map[string]string, key, value string) {
	for k := range headers {
		if strings.EqualFold(k, key) {
			delete(headers, k)
		}
	}
	headers[key] = value
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	return lo.CoalesceOrEmpty(text, http.StatusText(resp.StatusCode))
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		out[strings.ToLower(k)] = strings.Join(values, ", ")
	}
	return out
}

func decodeBody(contentType string, raw []byte) any {
	if !strings.Contains(contentType, contentTypeJSON) {
		return string(raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var data any
	if err := util.JSON.Unmarshal(raw, &data); err != nil {
		logging.GetLogger().Debug("Response declared as JSON is not valid JSON", "error", err)
		return string(raw)
	}
	return data
}

// responseRules picks each key list from the operation first and falls back
// to the document's response configuration.
func responseRules(global spec.ResponseConfig, op *spec.Operation) transformer.Rules {
	var ext spec.OperationExtensions
	if op != nil {
		ext = op.Extensions
	}
	pick := func(own, fallback []string) []string {
		if len(own) > 0 {
			return own
		}
		return fallback
	}
	return transformer.Rules{
		Include:   pick(ext.IncludeResponseKeys, global.IncludeResponseKeys),
		Exclude:   pick(ext.ExcludeResponseKeys, global.ExcludeResponseKeys),
		Sensitive: pick(ext.SensitiveResponseFields, global.SensitiveResponseFields),
		MaxLength: global.MaxLength,
	}
}

func redactURL(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	clean.User = nil
	return clean.String()
}

// sortedHeaderNames is used for stable debug output.
func sortedHeaderNames(headers map[string]string) []string {
	names := lo.Keys(headers)
	sort.Strings(names)
	return names
}
