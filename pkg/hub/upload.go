package hub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/lehungry-robotum/commander/pkg/apierr"
)

// UploadFile is a local file to be stored at Path in the repository.
type UploadFile struct {
	Path      string // path in the repository, slash separated
	LocalPath string
}

type fileInfo struct {
	UploadFile
	size   int64
	oid    string // sha256 hex
	sample []byte // first 512 bytes
	lfs    bool
}

func inspect(f UploadFile) (fileInfo, error) {
	fh, err := os.Open(f.LocalPath)
	if err != nil {
		return fileInfo{}, err
	}
	defer fh.Close()

	h := sha256.New()
	var sample bytes.Buffer
	n, err := io.Copy(io.MultiWriter(h, &limitedBuffer{buf: &sample, max: 512}), fh)
	if err != nil {
		return fileInfo{}, fmt.Errorf("hash %s: %w", f.LocalPath, err)
	}
	return fileInfo{
		UploadFile: f,
		size:       n,
		oid:        hex.EncodeToString(h.Sum(nil)),
		sample:     sample.Bytes(),
	}, nil
}

type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		l.buf.Write(p[:room])
	}
	return len(p), nil
}

// Upload commits files to the dataset repository in a single commit. Files the
// hub wants stored in LFS are uploaded to the LFS endpoint first.
func (c *Client) Upload(ctx context.Context, repoID string, files []UploadFile, message string) error {
	if len(files) == 0 {
		return nil
	}

	infos := make([]fileInfo, 0, len(files))
	for _, f := range files {
		info, err := inspect(f)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	if err := c.preupload(ctx, repoID, infos); err != nil {
		return err
	}

	var lfs []fileInfo
	for _, info := range infos {
		if info.lfs {
			lfs = append(lfs, info)
		}
	}
	if err := c.uploadLFS(ctx, repoID, lfs); err != nil {
		return err
	}

	return c.commit(ctx, repoID, infos, message)
}

func (c *Client) preupload(ctx context.Context, repoID string, infos []fileInfo) error {
	type file struct {
		Path   string `json:"path"`
		Sample string `json:"sample"`
		Size   int64  `json:"size"`
	}
	payload := struct {
		Files []file `json:"files"`
	}{}
	for _, info := range infos {
		payload.Files = append(payload.Files, file{
			Path:   info.Path,
			Sample: base64.StdEncoding.EncodeToString(info.sample),
			Size:   info.size,
		})
	}
	body, err := jsonBody(payload)
	if err != nil {
		return err
	}

	var resp struct {
		Files []struct {
			Path       string `json:"path"`
			UploadMode string `json:"uploadMode"`
		} `json:"files"`
	}
	_, _, err = c.do(ctx, request{
		op:     "preupload",
		method: http.MethodPost,
		url:    c.apiURL(repoID, "/preupload/"+url.PathEscape(c.rev())),
		header: map[string]string{"Content-Type": "application/json"},
		body:   body,
	}, &resp, nil)
	if err != nil {
		return err
	}

	modes := make(map[string]string, len(resp.Files))
	for _, f := range resp.Files {
		modes[f.Path] = f.UploadMode
	}
	for i := range infos {
		infos[i].lfs = modes[infos[i].Path] == "lfs"
	}
	return nil
}

type lfsAction struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header"`
}

type lfsObject struct {
	OID     string               `json:"oid"`
	Size    int64                `json:"size"`
	Actions map[string]lfsAction `json:"actions,omitempty"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) uploadLFS(ctx context.Context, repoID string, infos []fileInfo) error {
	if len(infos) == 0 {
		return nil
	}

	objects := make([]lfsObject, 0, len(infos))
	byOID := make(map[string]fileInfo, len(infos))
	for _, info := range infos {
		objects = append(objects, lfsObject{OID: info.oid, Size: info.size})
		byOID[info.oid] = info
	}
	body, err := jsonBody(map[string]any{
		"operation": "upload",
		"transfers": []string{"basic", "multipart"},
		"objects":   objects,
		"hash_algo": "sha256",
	})
	if err != nil {
		return err
	}

	var batch struct {
		Objects []lfsObject `json:"objects"`
	}
	_, _, err = c.do(ctx, request{
		op:     "lfs batch",
		method: http.MethodPost,
		url:    strings.TrimRight(c.BaseURL, "/") + "/datasets/" + repoID + ".git/info/lfs/objects/batch",
		header: map[string]string{
			"Accept":       "application/vnd.git-lfs+json",
			"Content-Type": "application/vnd.git-lfs+json",
		},
		body: body,
	}, &batch, nil)
	if err != nil {
		return err
	}

	for _, obj := range batch.Objects {
		if obj.Error != nil {
			return apierr.New(apierr.KindForStatus(obj.Error.Code), "lfs batch", fmt.Errorf("%s: %s", obj.OID, obj.Error.Message))
		}
		upload, ok := obj.Actions["upload"]
		if !ok {
			continue // already stored
		}
		info := byOID[obj.OID]

		if _, multipart := upload.Header["chunk_size"]; multipart {
			err = c.putMultipart(ctx, info, upload)
		} else {
			err = c.putFile(ctx, info, upload)
		}
		if err != nil {
			return err
		}

		if verify, ok := obj.Actions["verify"]; ok {
			if err := c.verifyLFS(ctx, info, verify); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) putFile(ctx context.Context, info fileInfo, action lfsAction) error {
	header := map[string]string{}
	for k, v := range action.Header {
		header[k] = v
	}
	open := func() (io.Reader, error) {
		data, err := os.ReadFile(info.LocalPath)
		return bytes.NewReader(data), err
	}
	_, _, err := c.do(ctx, request{
		op:     "lfs upload " + info.Path,
		method: http.MethodPut,
		url:    action.Href,
		header: header,
		body:   open,
	}, nil, nil)
	return err
}

// putMultipart uploads a large object in chunks to the presigned part URLs
// listed in the action header, then completes the upload at action.Href.
func (c *Client) putMultipart(ctx context.Context, info fileInfo, action lfsAction) error {
	chunkSize, err := strconv.ParseInt(action.Header["chunk_size"], 10, 64)
	if err != nil || chunkSize <= 0 {
		return apierr.New(apierr.Malformed, "lfs multipart", fmt.Errorf("invalid chunk_size %q", action.Header["chunk_size"]))
	}

	var parts []int
	for k := range action.Header {
		if n, err := strconv.Atoi(k); err == nil {
			parts = append(parts, n)
		}
	}
	sort.Ints(parts)

	type etagPart struct {
		PartNumber int    `json:"partNumber"`
		ETag       string `json:"etag"`
	}
	var done []etagPart

	for _, n := range parts {
		href := action.Header[fmt.Sprintf("%05d", n)]
		if href == "" {
			href = action.Header[strconv.Itoa(n)]
		}
		offset := int64(n-1) * chunkSize
		read := func() (io.Reader, error) {
			f, err := os.Open(info.LocalPath)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			buf := make([]byte, chunkSize)
			m, err := f.ReadAt(buf, offset)
			if err != nil && err != io.EOF {
				return nil, err
			}
			return bytes.NewReader(buf[:m]), nil
		}
		header, _, err := c.do(ctx, request{
			op:     fmt.Sprintf("lfs upload %s part %d", info.Path, n),
			method: http.MethodPut,
			url:    href,
			body:   read,
		}, nil, nil)
		if err != nil {
			return err
		}
		done = append(done, etagPart{PartNumber: n, ETag: header.Get("ETag")})
	}

	body, err := jsonBody(map[string]any{"oid": info.oid, "parts": done})
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, request{
		op:     "lfs complete " + info.Path,
		method: http.MethodPost,
		url:    action.Href,
		header: map[string]string{"Content-Type": "application/vnd.git-lfs+json"},
		body:   body,
	}, nil, nil)
	return err
}

func (c *Client) verifyLFS(ctx context.Context, info fileInfo, action lfsAction) error {
	body, err := jsonBody(map[string]any{"oid": info.oid, "size": info.size})
	if err != nil {
		return err
	}
	header := map[string]string{"Content-Type": "application/vnd.git-lfs+json"}
	for k, v := range action.Header {
		header[k] = v
	}
	_, _, err = c.do(ctx, request{
		op:     "lfs verify " + info.Path,
		method: http.MethodPost,
		url:    action.Href,
		header: header,
		body:   body,
	}, nil, nil)
	return err
}

// commit sends the NDJSON commit payload: a header line, then one line per
// file, inline for regular files and as a pointer for LFS files.
func (c *Client) commit(ctx context.Context, repoID string, infos []fileInfo, message string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	type line struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := enc.Encode(line{Key: "header", Value: map[string]string{"summary": message, "description": ""}}); err != nil {
		return err
	}

	for _, info := range infos {
		var l line
		if info.lfs {
			l = line{Key: "lfsFile", Value: map[string]any{
				"path": info.Path,
				"algo": "sha256",
				"oid":  info.oid,
				"size": info.size,
			}}
		} else {
			data, err := os.ReadFile(info.LocalPath)
			if err != nil {
				return err
			}
			l = line{Key: "file", Value: map[string]string{
				"path":     info.Path,
				"content":  base64.StdEncoding.EncodeToString(data),
				"encoding": "base64",
			}}
		}
		if err := enc.Encode(l); err != nil {
			return err
		}
	}

	payload := buf.Bytes()
	_, _, err := c.do(ctx, request{
		op:     "commit",
		method: http.MethodPost,
		url:    c.apiURL(repoID, "/commit/"+url.PathEscape(c.rev())),
		header: map[string]string{"Content-Type": "application/x-ndjson"},
		body:   func() (io.Reader, error) { return bytes.NewReader(payload), nil },
	}, nil, nil)
	return err
}
