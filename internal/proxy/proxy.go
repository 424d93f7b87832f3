// Package proxy implements the MITM Proxy Engine (C5): a TCP listener
// that serves plaintext requests directly and intercepts CONNECT-tunneled
// TLS by minting a leaf from internal/ca, consulting internal/scope,
// internal/policy and internal/intercept for every observed transaction,
// and reporting each one upstream, grounded on
// original_source/proxy-core/src/proxy.rs and original_source/proxy-core/src/tls.rs.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/regaipserdar/proxxy-sub001/internal/ca"
	proxxyerrors "github.com/regaipserdar/proxxy-sub001/internal/errors"
	"github.com/regaipserdar/proxxy-sub001/internal/intercept"
	"github.com/regaipserdar/proxxy-sub001/internal/logging"
	"github.com/regaipserdar/proxxy-sub001/internal/metrics"
	"github.com/regaipserdar/proxxy-sub001/internal/policy"
	"github.com/regaipserdar/proxxy-sub001/internal/scope"
)

// defaultMaxBodyBytes is the in-memory response-body truncation threshold
// applied before a TrafficEvent is reported; the outer stream is still
// fully proxied to the client regardless of this cap.
const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// TrafficEvent is the subset of an observed transaction the engine hands
// to a Reporter; it mirrors transport.TrafficEvent without importing that
// package, keeping the proxy engine usable without a live agent connection.
type TrafficEvent struct {
	RequestID  string
	AgentID    string
	Method     string
	URL        string
	Headers    map[string]string
	Body       []byte
	StatusCode int
	ObservedAt time.Time
}

// Reporter receives every observed transaction and pause notification.
// An adapter in cmd/agent translates TrafficEvent into transport.TrafficEvent
// and calls through to a transport.Client, keeping this package free of a
// direct dependency on the transport wire format.
type Reporter interface {
	SendTrafficEvent(event TrafficEvent) error
	SendInterceptPause(requestID string) error
}

// Config configures an Engine.
type Config struct {
	ListenAddr   string
	AdminAddr    string
	AgentID      string
	CA           *ca.CA
	Policy       *policy.Policy
	Controller   *intercept.Controller
	Reporter     Reporter
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
	MaxBodyBytes int
	DialTimeout  time.Duration
}

// Engine is the MITM proxy engine for a single agent.
type Engine struct {
	agentID      string
	ca           *ca.CA
	controller   *intercept.Controller
	reporter     Reporter
	logger       *logging.Logger
	metrics      *metrics.Metrics
	maxBodyBytes int
	transport    *http.Transport

	policyMu sync.RWMutex
	policy   *policy.Policy

	totalRequests     uint64
	activeConnections int64
}

// NewEngine builds an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Engine{
		agentID:      cfg.AgentID,
		ca:           cfg.CA,
		controller:   cfg.Controller,
		reporter:     cfg.Reporter,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		maxBodyBytes: maxBody,
		policy:       cfg.Policy,
		transport: &http.Transport{
			Proxy: nil,
			DialContext: (&net.Dialer{
				Timeout: dialTimeout,
			}).DialContext,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: false},
			MaxIdleConnsPerHost: 16,
		},
	}
}

// SetPolicy swaps the live policy atomically; an in-flight request already
// past Evaluate continues under the policy it started with.
func (e *Engine) SetPolicy(p *policy.Policy) {
	e.policyMu.Lock()
	e.policy = p
	e.policyMu.Unlock()
}

func (e *Engine) currentPolicy() *policy.Policy {
	e.policyMu.RLock()
	defer e.policyMu.RUnlock()
	return e.policy
}

// TotalRequests returns the monotone count of transactions processed.
func (e *Engine) TotalRequests() uint64 {
	return atomic.LoadUint64(&e.totalRequests)
}

// ActiveConnections returns the current number of live client connections.
func (e *Engine) ActiveConnections() int64 {
	return atomic.LoadInt64(&e.activeConnections)
}

// ServeHTTP makes Engine usable directly as the handler of an http.Server
// for plaintext proxying and as the CONNECT entry point for TLS MITM.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&e.activeConnections, 1)
	defer atomic.AddInt64(&e.activeConnections, -1)
	if e.metrics != nil {
		e.metrics.ActiveConnections.Set(float64(atomic.LoadInt64(&e.activeConnections)))
		defer e.metrics.ActiveConnections.Set(float64(atomic.LoadInt64(&e.activeConnections)))
	}

	if r.Method == http.MethodConnect {
		e.handleConnect(w, r)
		return
	}
	e.handlePlaintext(w, r)
}

func (e *Engine) handlePlaintext(w http.ResponseWriter, r *http.Request) {
	req := r.Clone(r.Context())
	if req.URL.Scheme == "" {
		req.URL.Scheme = "http"
	}
	if req.URL.Host == "" {
		req.URL.Host = req.Host
	}
	resp, err := e.processTransaction(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeResponse(w, resp)
}

// handleConnect hijacks the client connection, completes a TLS handshake
// using a freshly minted leaf for the tunneled host, and then serves every
// request sent down that tunnel as if it had arrived in plaintext.
func (e *Engine) handleConnect(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	clientConn, _, err := hj.Hijack()
	if err != nil {
		http.Error(w, "hijack failed", http.StatusInternalServerError)
		return
	}
	defer clientConn.Close()

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	host := r.Host
	leaf, err := e.ca.MintLeaf(stripPort(host))
	if err != nil {
		if e.logger != nil {
			e.logger.WithError(err).Warn("failed to mint MITM leaf certificate")
		}
		return
	}
	cert, err := tls.X509KeyPair(leaf.CertPEM, leaf.KeyPEM)
	if err != nil {
		return
	}

	tlsConn := tls.Server(clientConn, &tls.Config{Certificates: []tls.Certificate{cert}})
	defer tlsConn.Close()
	if err := tlsConn.Handshake(); err != nil {
		return
	}

	reader := bufio.NewReader(tlsConn)
	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			return
		}
		req.URL.Scheme = "https"
		req.URL.Host = host
		if req.Host == "" {
			req.Host = host
		}

		resp, err := e.processTransaction(req.Context(), req)
		if err != nil {
			resp = errorResponse(http.StatusBadGateway, err.Error())
		}
		if err := resp.Write(tlsConn); err != nil {
			return
		}
		if resp.Close {
			return
		}
	}
}

// processTransaction runs one HTTP transaction through scope, policy and
// the interception controller, forwards it upstream on an in-scope pass,
// and reports the outcome.
func (e *Engine) processTransaction(ctx context.Context, req *http.Request) (*http.Response, error) {
	requestID := uuid.New().String()
	atomic.AddUint64(&e.totalRequests, 1)

	bodyBytes, err := readAndRestoreBody(req)
	if err != nil {
		return nil, proxxyerrors.Network("read request body", err)
	}

	rctx := policy.RequestContext{
		URL:     req.URL.String(),
		Method:  req.Method,
		Headers: flattenHeader(req.Header),
		Body:    bodyBytes,
		Port:    portOf(req.URL),
	}

	pol := e.currentPolicy()
	var decision policy.Decision
	if pol != nil {
		decision = pol.Evaluate(rctx)
	}

	if decision.OutOfScope {
		e.recordScopeAction()
		if decision.OutOfScopeAction == scope.ActionDrop {
			return nil, proxxyerrors.Network("request dropped (out of scope)", nil)
		}
		// LogOnly and Pass both forward untouched.
	} else if decision.Matched {
		blocked, blockResp := e.applyAction(ctx, requestID, decision.Rule, req, &bodyBytes)
		if blocked {
			return blockResp, nil
		}
	}

	if pol != nil {
		headers := flattenHeader(req.Header)
		pol.ApplyMatchReplaceHeaders(headers)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		bodyBytes = pol.ApplyMatchReplace(bodyBytes)
	}
	req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	req.ContentLength = int64(len(bodyBytes))

	e.reportRequest(requestID, req, bodyBytes)

	resp, err := e.transport.RoundTrip(req)
	if err != nil {
		return nil, proxxyerrors.Network("forward upstream", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, proxxyerrors.Network("read upstream response", err)
	}
	if pol != nil {
		respBody = pol.ApplyMatchReplace(respBody)
	}
	truncated := respBody
	if len(truncated) > e.maxBodyBytes {
		truncated = truncated[:e.maxBodyBytes]
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	resp.ContentLength = int64(len(respBody))
	resp.Header.Set("Content-Length", strconv.Itoa(len(respBody)))

	e.reportResponse(requestID, resp, truncated)
	return resp, nil
}

// applyAction applies a matched rule's action; the second return value is
// a synthetic response to send the client instead of forwarding, used for
// Block and Drop.
func (e *Engine) applyAction(ctx context.Context, requestID string, rule policy.Rule, req *http.Request, bodyBytes *[]byte) (bool, *http.Response) {
	switch rule.Action.Kind {
	case policy.ActionPause:
		if e.reporter != nil {
			_ = e.reporter.SendInterceptPause(requestID)
		}
		if e.metrics != nil {
			e.metrics.InterceptionsPaused.Inc()
		}
		cmd, err := e.controller.WaitForDecision(ctx, requestID)
		if err != nil {
			return true, errorResponse(http.StatusGatewayTimeout, "intercept decision timed out")
		}
		switch cmd.Kind {
		case intercept.CommandDrop:
			return true, errorResponse(http.StatusForbidden, "dropped by operator")
		case intercept.CommandModify:
			applyModification(req, bodyBytes, cmd)
		}
		return false, nil
	case policy.ActionBlock:
		return true, errorResponse(http.StatusForbidden, rule.Action.BlockReason)
	case policy.ActionDrop:
		return true, errorResponse(http.StatusForbidden, "dropped")
	case policy.ActionDelay:
		select {
		case <-time.After(time.Duration(rule.Action.DelayMS) * time.Millisecond):
		case <-ctx.Done():
		}
		return false, nil
	case policy.ActionInjectHeader:
		req.Header.Set(rule.Action.HeaderName, rule.Action.HeaderValue)
		return false, nil
	case policy.ActionModifyBody:
		if rule.Action.FindRegex != nil {
			*bodyBytes = rule.Action.FindRegex.ReplaceAll(*bodyBytes, []byte(rule.Action.ReplaceWith))
		}
		return false, nil
	default:
		return false, nil
	}
}

func applyModification(req *http.Request, bodyBytes *[]byte, cmd intercept.Command) {
	if cmd.ModifiedMethod != "" {
		req.Method = cmd.ModifiedMethod
	}
	if cmd.ModifiedURL != "" {
		if u, err := req.URL.Parse(cmd.ModifiedURL); err == nil {
			req.URL = u
		}
	}
	for k, v := range cmd.ModifiedHeaders {
		req.Header.Set(k, v)
	}
	if cmd.ModifiedBody != nil {
		*bodyBytes = cmd.ModifiedBody
	}
}

func (e *Engine) recordScopeAction() {
	if e.metrics != nil {
		e.metrics.ProxyRequestsTotal.WithLabelValues(e.agentID, "out_of_scope").Inc()
	}
}

func (e *Engine) reportRequest(requestID string, req *http.Request, body []byte) {
	if e.metrics != nil {
		e.metrics.ProxyRequestsTotal.WithLabelValues(e.agentID, "forwarded").Inc()
	}
	if e.reporter == nil {
		return
	}
	_ = e.reporter.SendTrafficEvent(TrafficEvent{
		RequestID:  requestID,
		AgentID:    e.agentID,
		Method:     req.Method,
		URL:        req.URL.String(),
		Headers:    flattenHeader(req.Header),
		Body:       body,
		ObservedAt: time.Now(),
	})
}

func (e *Engine) reportResponse(requestID string, resp *http.Response, body []byte) {
	if e.reporter == nil {
		return
	}
	_ = e.reporter.SendTrafficEvent(TrafficEvent{
		RequestID:  requestID,
		AgentID:    e.agentID,
		Headers:    flattenHeader(resp.Header),
		Body:       body,
		StatusCode: resp.StatusCode,
		ObservedAt: time.Now(),
	})
}

func readAndRestoreBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func portOf(u *url.URL) int {
	portStr := u.Port()
	if portStr == "" {
		if u.Scheme == "https" {
			return 443
		}
		return 80
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return p
}

func stripPort(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

func errorResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Close:      true,
	}
}

func writeResponse(w http.ResponseWriter, resp *http.Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != nil {
		io.Copy(w, resp.Body)
		resp.Body.Close()
	}
}
