package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaAdapter serves API Gateway proxy events through an http.Handler, so
// the same router runs behind a local listener and in Lambda.
type LambdaAdapter struct {
	handler http.Handler
}

// NewLambdaAdapter wraps h.
func NewLambdaAdapter(h http.Handler) *LambdaAdapter {
	return &LambdaAdapter{handler: h}
}

// Proxy is the Lambda entry point (lambda.Start(adapter.Proxy)).
//
// The body is passed to the handler byte for byte: webhook signatures are
// computed over the raw payload, so a base64-encoded event is decoded once
// and never re-encoded.
func (a *LambdaAdapter) Proxy(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := newRequestFromEvent(ctx, event)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	w := newProxyResponseWriter()
	a.handler.ServeHTTP(w, req)
	return w.response(), nil
}

func newRequestFromEvent(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 request body: %w", err)
		}
		body = decoded
	}

	path := event.Path
	if path == "" {
		path = "/"
	}
	u := &url.URL{Path: path}

	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request from proxy event: %w", err)
	}

	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	req.RemoteAddr = event.RequestContext.Identity.SourceIP
	if event.RequestContext.RequestID != "" && req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", event.RequestContext.RequestID)
	}
	req.Host = req.Header.Get("Host")
	return req, nil
}

// proxyResponseWriter buffers a handler's response for conversion into an
// APIGatewayProxyResponse.
type proxyResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newProxyResponseWriter() *proxyResponseWriter {
	return &proxyResponseWriter{header: http.Header{}}
}

func (w *proxyResponseWriter) Header() http.Header { return w.header }

func (w *proxyResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *proxyResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *proxyResponseWriter) response() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	resp := events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           make(map[string]string, len(w.header)),
		MultiValueHeaders: make(map[string][]string, len(w.header)),
	}
	for k, vs := range w.header {
		resp.Headers[k] = strings.Join(vs, ",")
		resp.MultiValueHeaders[k] = vs
	}

	if utf8.Valid(w.body.Bytes()) {
		resp.Body = w.body.String()
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(w.body.Bytes())
		resp.IsBase64Encoded = true
	}
	return resp
}
