package core

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method, path, query, body, signature, remote, requestID string
}

func captureHandler(captured *capturedRequest, status int, respBody []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*captured = capturedRequest{
			method:    r.Method,
			path:      r.URL.Path,
			query:     r.URL.RawQuery,
			body:      string(b),
			signature: r.Header.Get("Stripe-Signature"),
			remote:    r.RemoteAddr,
			requestID: r.Header.Get("X-Request-Id"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(status)
		_, _ = w.Write(respBody)
	})
}

func TestLambdaAdapter_PlainBody(t *testing.T) {
	var got capturedRequest
	adapter := NewLambdaAdapter(captureHandler(&got, http.StatusOK, []byte(`{"received":true}`)))

	resp, err := adapter.Proxy(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodPost,
		Path:                  "/webhooks/invoice",
		Body:                  `{"id":"evt_1"}`,
		Headers:               map[string]string{"Stripe-Signature": "t=1,v1=ab"},
		QueryStringParameters: map[string]string{"debug": "1"},
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID: "apigw-req",
			Identity:  events.APIGatewayRequestIdentity{SourceIP: "54.187.174.169"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/webhooks/invoice", got.path)
	assert.Equal(t, "debug=1", got.query)
	assert.Equal(t, `{"id":"evt_1"}`, got.body)
	assert.Equal(t, "t=1,v1=ab", got.signature)
	assert.Equal(t, "54.187.174.169", got.remote)
	assert.Equal(t, "apigw-req", got.requestID)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"received":true}`, resp.Body)
	assert.False(t, resp.IsBase64Encoded)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, []string{"a=1", "b=2"}, resp.MultiValueHeaders["Set-Cookie"])
}

func TestLambdaAdapter_Base64BodyPassedRaw(t *testing.T) {
	raw := "{\"id\":\"evt_2\",\n  \"object\": \"event\"}"
	var got capturedRequest
	adapter := NewLambdaAdapter(captureHandler(&got, http.StatusOK, nil))

	_, err := adapter.Proxy(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/webhooks/customer",
		Body:            base64.StdEncoding.EncodeToString([]byte(raw)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, raw, got.body, "signed bytes must reach the handler unchanged")
}

func TestLambdaAdapter_InvalidBase64(t *testing.T) {
	adapter := NewLambdaAdapter(http.NotFoundHandler())

	_, err := adapter.Proxy(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/webhooks/invoice",
		Body:            "not base64!!",
		IsBase64Encoded: true,
	})
	assert.Error(t, err)
}

func TestLambdaAdapter_MultiValueHeadersWin(t *testing.T) {
	var got capturedRequest
	adapter := NewLambdaAdapter(captureHandler(&got, http.StatusOK, nil))

	_, err := adapter.Proxy(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:        http.MethodPost,
		Path:              "/webhooks/invoice",
		Headers:           map[string]string{"Stripe-Signature": "single"},
		MultiValueHeaders: map[string][]string{"Stripe-Signature": {"multi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "multi", got.signature)
}

func TestLambdaAdapter_BinaryResponseEncoded(t *testing.T) {
	var got capturedRequest
	body := []byte{0xff, 0xfe, 0x00}
	adapter := NewLambdaAdapter(captureHandler(&got, http.StatusAccepted, body))

	resp, err := adapter.Proxy(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
	require.NoError(t, err)

	assert.Equal(t, "/", got.path)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, resp.IsBase64Encoded)
	assert.Equal(t, base64.StdEncoding.EncodeToString(body), resp.Body)
}

func TestLambdaAdapter_NoWriteDefaultsToOK(t *testing.T) {
	adapter := NewLambdaAdapter(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	resp, err := adapter.Proxy(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/health"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
