package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lehungry-robotum/commander/pkg/apierr"
)

// File is an entry of a repository listing.
type File struct {
	Type string `json:"type"` // "file" or "directory"
	Path string `json:"path"`
	Size int64  `json:"size"`
	OID  string `json:"oid"`
}

var nextLink = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// ListFiles returns the paths of all files in a dataset repository.
func (c *Client) ListFiles(ctx context.Context, repoID string) ([]string, error) {
	next := c.apiURL(repoID, "/tree/"+url.PathEscape(c.rev())+"?recursive=true&expand=false")

	var paths []string
	for next != "" {
		var page []File
		header, _, err := c.do(ctx, request{op: "list files", method: http.MethodGet, url: next}, &page, nil)
		if err != nil {
			return nil, err
		}
		for _, f := range page {
			if f.Type == "file" {
				paths = append(paths, f.Path)
			}
		}

		next = ""
		if m := nextLink.FindStringSubmatch(header.Get("Link")); m != nil {
			next = m[1]
		}
	}
	return paths, nil
}

// Download stores the content of path in the dataset repository at dest,
// creating parent directories as needed.
func (c *Client) Download(ctx context.Context, repoID, path, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	u := strings.TrimRight(c.BaseURL, "/") + "/datasets/" + repoID + "/resolve/" + url.PathEscape(c.rev()) + "/" + escapePath(path)
	sink := func() (io.WriteCloser, error) { return os.Create(dest) }
	_, _, err := c.do(ctx, request{op: "download " + path, method: http.MethodGet, url: u}, nil, sink)
	return err
}

// CreateTag tags the current revision of a dataset repository.
func (c *Client) CreateTag(ctx context.Context, repoID, tag string) error {
	body, err := jsonBody(map[string]string{"tag": tag})
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, request{
		op:     "create tag " + tag,
		method: http.MethodPost,
		url:    c.apiURL(repoID, "/tag/"+url.PathEscape(c.rev())),
		header: map[string]string{"Content-Type": "application/json"},
		body:   body,
	}, nil, nil)
	return err
}

// CreateRepo creates a dataset repository. An existing repository is not an
// error.
func (c *Client) CreateRepo(ctx context.Context, repoID string, private bool) error {
	namespace, name, ok := strings.Cut(repoID, "/")
	if !ok || namespace == "" || name == "" {
		return apierr.New(apierr.Malformed, "create repo", fmt.Errorf("invalid repo id %q", repoID))
	}

	body, err := jsonBody(map[string]any{
		"type":         "dataset",
		"name":         name,
		"organization": namespace,
		"private":      private,
	})
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, request{
		op:     "create repo",
		method: http.MethodPost,
		url:    strings.TrimRight(c.BaseURL, "/") + "/api/repos/create",
		header: map[string]string{"Content-Type": "application/json"},
		body:   body,
		accept: []int{http.StatusConflict},
	}, nil, nil)
	return err
}
