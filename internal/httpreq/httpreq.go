/*
 * Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package httpreq

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"k8s.io/klog/v2"

	"github.com/NVIDIA/topoengine/internal/httperr"
)

const (
	// DefaultMaxRetries is the default number of attempts per request
	DefaultMaxRetries = 5

	// DefaultBackOff is the initial delay used for retry backoff
	DefaultBackOff = 500 * time.Millisecond

	// maxRetryAfter is the maximum delay allowed when honoring a Retry-After header
	maxRetryAfter = 5 * time.Minute
)

// Client fetches documents over HTTP, retrying transient failures with
// exponential backoff.
type Client struct {
	client     *http.Client
	maxRetries int
	backOff    time.Duration
}

func NewClient(insecureSkipVerify bool) *Client {
	client := &http.Client{}
	if insecureSkipVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		client:     client,
		maxRetries: DefaultMaxRetries,
		backOff:    DefaultBackOff,
	}
}

// WithRetries overrides the number of attempts and the initial backoff.
func (c *Client) WithRetries(maxRetries int, backOff time.Duration) *Client {
	c.maxRetries = max(maxRetries, 1)
	c.backOff = backOff
	return c
}

// ShouldRetry returns true if the given HTTP status code is retryable
func ShouldRetry(status int) bool {
	switch status {
	case
		http.StatusRequestTimeout,      // 408
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

func ParseRetryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}

	value := resp.Header.Get("Retry-After")
	if len(value) == 0 {
		return 0, false
	}

	// seconds
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		if seconds > int(maxRetryAfter/time.Second) {
			return maxRetryAfter, true
		}
		return time.Duration(seconds) * time.Second, true
	}

	// HTTP date
	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return min(delay, maxRetryAfter), true
		}
	}

	return 0, false
}

// GetURL builds a fully-qualified URL from a base URL, optional path segments,
// and optional query parameters.
func GetURL(baseURL string, query map[string]string, paths ...string) (string, *httperr.Error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", httperr.NewError(http.StatusBadRequest, err.Error())
	}

	u.Path = path.Join(append([]string{u.Path}, paths...)...)

	if len(query) != 0 {
		q := u.Query()
		for key, val := range query {
			q.Set(key, val)
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// Get fetches the document at baseURL joined with paths.
func (c *Client) Get(ctx context.Context, baseURL string, query map[string]string, paths ...string) ([]byte, *httperr.Error) {
	u, httpErr := GetURL(baseURL, query, paths...)
	if httpErr != nil {
		return nil, httpErr
	}

	for attempt := 1; ; attempt++ {
		resp, body, httpErr := c.do(ctx, u)
		if httpErr == nil || attempt >= c.maxRetries || !ShouldRetry(httpErr.Code()) {
			return body, httpErr
		}
		wait := nextBackoff(resp, c.backOff, attempt-1)
		klog.Infof("Attempt %d failed with error: %v. Retrying in %s", attempt, httpErr, wait.String())

		select {
		case <-ctx.Done():
			return nil, httperr.NewError(http.StatusGatewayTimeout, ctx.Err().Error())
		case <-time.After(wait):
		}
	}
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, []byte, *httperr.Error) {
	klog.V(4).Infof("Fetching %s", u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, httperr.NewError(http.StatusInternalServerError, fmt.Sprintf("failed to create HTTP request: %v", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, httperr.NewError(http.StatusBadGateway, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, httperr.NewError(http.StatusInternalServerError, fmt.Sprintf("failed to read HTTP response: %v", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, body, nil
	}

	return resp, body, httperr.NewError(resp.StatusCode, string(body))
}

// nextBackoff takes the delay from the Retry-After header, falling back
// to exponential backoff.
func nextBackoff(resp *http.Response, initialBackoff time.Duration, attempt int) time.Duration {
	wait, valid := ParseRetryAfter(resp)
	if !valid {
		wait = initialBackoff * time.Duration(int(math.Pow(2, float64(attempt))))
	}
	return wait
}
