// Package hub is a small client for the Hugging Face dataset hub: listing and
// downloading files, creating repositories and tags, and uploading commits.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lehungry-robotum/commander/pkg/apierr"
)

const (
	DefaultBaseURL  = "https://huggingface.co"
	DefaultRevision = "main"
)

// Client talks to the hub's HTTP API. The zero value is not usable; use New.
type Client struct {
	BaseURL  string
	Token    string
	Revision string
	HTTP     *http.Client
	Retry    apierr.RetryConfig
	Logger   *log.Logger
}

// New returns a client for the public hub authenticated with token (which may
// be empty for public reads).
func New(token string, logger *log.Logger) *Client {
	retry := apierr.DefaultRetryConfig
	retry.Logger = logger
	return &Client{
		BaseURL:  DefaultBaseURL,
		Token:    token,
		Revision: DefaultRevision,
		HTTP:     &http.Client{Timeout: 10 * time.Minute},
		Retry:    retry,
		Logger:   logger,
	}
}

// ResolveToken finds a hub token the way the toolkit does: HF_TOKEN, then the
// token file under HF_HOME, then ~/.cache/huggingface/token.
func ResolveToken() string {
	if t := strings.TrimSpace(os.Getenv("HF_TOKEN")); t != "" {
		return t
	}

	var candidates []string
	if home := os.Getenv("HF_HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, "token"))
	}
	if dir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".cache", "huggingface", "token"))
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err == nil && len(bytes.TrimSpace(data)) > 0 {
			return string(bytes.TrimSpace(data))
		}
	}
	return ""
}

// request describes one HTTP call. body is called once per attempt.
type request struct {
	op     string
	method string
	url    string
	header map[string]string
	body   func() (io.Reader, error)
	// accept lists extra statuses treated as success (e.g. 409 on create).
	accept []int
}

func jsonBody(v any) (func() (io.Reader, error), error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return func() (io.Reader, error) { return bytes.NewReader(data), nil }, nil
}

// do performs req with retries on transient failures. If out is non-nil the
// response body is decoded into it as JSON; if sink is non-nil the body is
// copied to the writer it returns instead, which is opened afresh for every
// attempt. The response header and status are returned.
func (c *Client) do(ctx context.Context, req request, out any, sink func() (io.WriteCloser, error)) (http.Header, int, error) {
	var (
		header http.Header
		status int
	)

	err := apierr.Retry(ctx, c.Retry, func(ctx context.Context) error {
		var body io.Reader
		if req.body != nil {
			b, err := req.body()
			if err != nil {
				return apierr.New(apierr.Unknown, req.op, err)
			}
			body = b
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
		if err != nil {
			return apierr.New(apierr.Malformed, req.op, err)
		}
		if c.Token != "" && c.sameHost(req.url) {
			httpReq.Header.Set("Authorization", "Bearer "+c.Token)
		}
		for k, v := range req.header {
			httpReq.Header.Set(k, v)
		}

		resp, err := c.HTTP.Do(httpReq)
		if err != nil {
			return apierr.FromTransport(req.op, err)
		}
		defer resp.Body.Close()

		header, status = resp.Header, resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			for _, s := range req.accept {
				if resp.StatusCode == s {
					return nil
				}
			}
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return apierr.FromStatus(req.op, resp.StatusCode, errorMessage(msg))
		}

		switch {
		case sink != nil:
			w, err := sink()
			if err != nil {
				return apierr.New(apierr.Unknown, req.op, err)
			}
			_, err = io.Copy(w, resp.Body)
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return apierr.FromTransport(req.op, err)
			}
		case out != nil:
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return apierr.New(apierr.Malformed, req.op, fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	})
	return header, status, err
}

// sameHost reports whether rawURL points at the hub itself; presigned upload
// URLs on other hosts must not receive the token.
func (c *Client) sameHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return false
	}
	return u.Host == base.Host
}

// errorMessage extracts {"error": "..."} from a hub error body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}

func (c *Client) rev() string {
	if c.Revision == "" {
		return DefaultRevision
	}
	return c.Revision
}

func (c *Client) apiURL(repoID, suffix string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/datasets/" + repoID + suffix
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
