// Package e2e drives a running rolegate server through godog scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TestContext carries HTTP state across the steps of one scenario.
type TestContext struct {
	baseURL   string
	apiPrefix string
	runID     string
	client    *http.Client

	status  int
	headers http.Header
	body    []byte

	accessToken string
	emails      map[string]string
	ids         map[string]int64
}

func NewTestContext(baseURL, apiPrefix string) *TestContext {
	return &TestContext{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiPrefix: apiPrefix,
		runID:     fmt.Sprintf("%d", time.Now().UnixNano()),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.status = 0
	tc.headers = nil
	tc.body = nil
	tc.accessToken = ""
	tc.emails = make(map[string]string)
	tc.ids = make(map[string]int64)
}

func (tc *TestContext) do(method, path, contentType string, body io.Reader, headers map[string]string) error {
	req, err := http.NewRequest(method, tc.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.status = resp.StatusCode
	tc.headers = resp.Header
	return nil
}

func (tc *TestContext) authHeaders() map[string]string {
	if tc.accessToken == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + tc.accessToken}
}

// API prefixes path with the configured API prefix.
func (tc *TestContext) API(path string) string {
	return tc.apiPrefix + path
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, "", nil, tc.authHeaders())
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, "", nil, tc.authHeaders())
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.sendJSON(http.MethodPost, path, body)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.sendJSON(http.MethodPut, path, body)
}

func (tc *TestContext) sendJSON(method, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(method, path, "application/json", bytes.NewReader(raw), tc.authHeaders())
}

func (tc *TestContext) POSTForm(path string, form url.Values) error {
	return tc.do(http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), nil)
}

func (tc *TestContext) Status() int {
	return tc.status
}

func (tc *TestContext) Header(name string) string {
	return tc.headers.Get(name)
}

// GetResponseField reads a top-level field of a JSON object response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var obj map[string]any
	if err := json.Unmarshal(tc.body, &obj); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.body)
	}
	v, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", field, tc.body)
	}
	return v, nil
}

// ResponseArrayLen returns the length of a JSON array response.
func (tc *TestContext) ResponseArrayLen() (int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(tc.body, &items); err != nil {
		return 0, fmt.Errorf("response is not a JSON array: %s", tc.body)
	}
	return len(items), nil
}

func (tc *TestContext) Body() string {
	return string(tc.body)
}

func (tc *TestContext) SetAccessToken(token string) {
	tc.accessToken = token
}

func (tc *TestContext) ClearAccessToken() {
	tc.accessToken = ""
}

// EmailFor returns a run-unique address for alias, stable within a scenario.
func (tc *TestContext) EmailFor(alias string) string {
	if email, ok := tc.emails[alias]; ok {
		return email
	}
	email := fmt.Sprintf("%s+%s@example.com", alias, tc.runID)
	tc.emails[alias] = email
	return email
}

func (tc *TestContext) RememberID(alias string, userID int64) {
	tc.ids[alias] = userID
}

func (tc *TestContext) IDFor(alias string) (int64, error) {
	userID, ok := tc.ids[alias]
	if !ok {
		return 0, fmt.Errorf("no user created as %q", alias)
	}
	return userID, nil
}
