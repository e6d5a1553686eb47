// Package automark is the HTTP client for the AutoMark generation backend and
// its Instagram endpoints. It holds no state between calls and never retries.
package automark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var (
	// ErrTransport wraps failures to reach the backend at all.
	ErrTransport = errors.New("backend unreachable")
	// ErrMalformedResponse is returned when a 2xx body does not match the
	// endpoint's schema.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// RemoteError is a non-2xx answer from the backend.
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

const maxDetailLen = 512

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL turns a backend-relative path into an absolute URL. Absolute
// URLs are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	return c.baseURL + "/" + strings.TrimLeft(ref, "/")
}

func (c *Client) postJSON(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// formFile is one file part of a multipart request.
type formFile struct {
	field string
	name  string
	ctype string
	data  []byte
}

func (c *Client) postMultipart(ctx context.Context, path string, fields [][2]string, file *formFile) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
		ctype := file.ctype
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		h.Set("Content-Type", ctype)
		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := pw.Write(file.data); err != nil {
			return nil, fmt.Errorf("failed to write file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Detail: extractDetail(body)}
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s returned invalid JSON", ErrMalformedResponse, req.URL.Path)
	}
	return body, nil
}

// extractDetail pulls a readable message out of a FastAPI error body, where
// detail is either a string or an object carrying message/error.
func extractDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		detail := gjson.GetBytes(body, "detail")
		switch {
		case detail.Type == gjson.String:
			return detail.String()
		case detail.IsObject():
			if m := detail.Get("message"); m.Type == gjson.String {
				return m.String()
			}
			if e := detail.Get("error"); e.Type == gjson.String {
				return e.String()
			}
			return detail.Raw
		case detail.IsArray():
			return detail.Raw
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxDetailLen {
		cut := maxDetailLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindBool
	kindObject
)

type field struct {
	path string
	kind fieldKind
}

// decode checks the required fields of body before unmarshalling into out.
func decode(body []byte, out any, required ...field) error {
	if !gjson.ParseBytes(body).IsObject() {
		return fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}
	for _, f := range required {
		r := gjson.GetBytes(body, f.path)
		if !r.Exists() {
			return fmt.Errorf("%w: missing field %q", ErrMalformedResponse, f.path)
		}
		ok := false
		switch f.kind {
		case kindString:
			ok = r.Type == gjson.String
		case kindBool:
			ok = r.Type == gjson.True || r.Type == gjson.False
		case kindObject:
			ok = r.IsObject()
		}
		if !ok {
			return fmt.Errorf("%w: field %q has type %s", ErrMalformedResponse, f.path, r.Type)
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
