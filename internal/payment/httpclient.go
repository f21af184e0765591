package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ecshop/internal/domain/model"
)

const defaultTimeout = 15 * time.Second

func newHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

type apiCall struct {
	provider    model.PaymentProvider
	method      string
	url         string
	header      http.Header
	body        io.Reader
	contentType string
}

// 2xx以外はProviderErrorにする
func (c apiCall) do(ctx context.Context, client *http.Client, out any) error {
	req, err := http.NewRequestWithContext(ctx, c.method, c.url, c.body)
	if err != nil {
		return &ProviderError{Provider: c.provider, Err: err}
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return &ProviderError{Provider: c.provider, Err: err}
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return &ProviderError{Provider: c.provider, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &ProviderError{
			Provider: c.provider,
			Status:   res.StatusCode,
			Err:      fmt.Errorf("%s", strings.TrimSpace(string(truncate(b, 300)))),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &ProviderError{Provider: c.provider, Status: res.StatusCode, Err: err}
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
