// Package github provides a RemoteStore over the GitHub repository
// contents API. The blob sha GitHub reports for a file is its revision; a
// PUT carrying a stale sha is rejected by the server, which gives the
// conditional write.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/mesh-intelligence/planner/pkg/types"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = types.DefaultAPIURL

const (
	defaultMessage = "Update %s"
	apiVersion     = "2022-11-28"
	maxErrorBody   = 4 << 10
)

// Client is a RemoteStore for one repository and branch.
type Client struct {
	httpClient *http.Client
	baseURL    string
	owner      string
	repo       string
	branch     string
	token      string
	message    string
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, such as a GitHub
// Enterprise server or a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithBranch reads and writes on branch instead of the default branch.
func WithBranch(branch string) Option {
	return func(c *Client) { c.branch = branch }
}

// WithToken sets the bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the HTTP client. Timeouts are configured here.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMessage sets the commit message template. A %s verb receives the
// path.
func WithMessage(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.message = m
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Client for owner/repo.
func New(owner, repo string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		owner:      owner,
		repo:       repo,
		message:    defaultMessage,
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type contentResponse struct {
	Type        string `json:"type"`
	Encoding    string `json:"encoding"`
	Content     string `json:"content"`
	SHA         string `json:"sha"`
	Size        int    `json:"size"`
	DownloadURL string `json:"download_url"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
}

// Get implements types.RemoteStore.
func (c *Client) Get(ctx context.Context, path string) ([]byte, types.Revision, error) {
	u := c.contentsURL(path)
	if c.branch != "" {
		u += "?ref=" + url.QueryEscape(c.branch)
	}
	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", &types.TransportError{Op: "get", Path: path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", fmt.Errorf("get %s: %w", path, types.ErrPathNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, "", c.statusError("get", path, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &types.TransportError{Op: "get", Path: path, StatusCode: resp.StatusCode, Err: err}
	}
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
		return nil, "", fmt.Errorf("get %s: path is a directory", path)
	}
	var cr contentResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, "", &types.TransportError{Op: "get", Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if cr.Type != "" && cr.Type != "file" {
		return nil, "", fmt.Errorf("get %s: path is a %s, not a file", path, cr.Type)
	}

	var data []byte
	if cr.Encoding == "base64" {
		data, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
		if err != nil {
			return nil, "", &types.TransportError{Op: "get", Path: path, Err: fmt.Errorf("decoding content: %w", err)}
		}
	} else {
		// Large files come back without inline content.
		data, err = c.download(ctx, path, cr)
		if err != nil {
			return nil, "", err
		}
	}
	c.logger.Printf("get %s: %d bytes at %s", path, len(data), types.Revision(cr.SHA))
	return data, types.Revision(cr.SHA), nil
}

// Put implements types.RemoteStore. An absent expected revision sends no
// sha, which GitHub only accepts when the file does not exist.
func (c *Client) Put(ctx context.Context, path string, content []byte, expected types.Revision) (types.Revision, error) {
	msg := c.message
	if strings.Contains(msg, "%s") {
		msg = fmt.Sprintf(msg, path)
	}
	req := putRequest{
		Message: msg,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     string(expected),
		Branch:  c.branch,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, c.contentsURL(path), bytes.NewReader(payload))
	if err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return "", &types.ConflictError{Path: path, Expected: expected}
	case http.StatusUnprocessableEntity:
		msg := readAPIMessage(resp.Body)
		if strings.Contains(strings.ToLower(msg), "sha") {
			return "", &types.ConflictError{Path: path, Expected: expected}
		}
		return "", &types.TransportError{Op: "put", Path: path, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	default:
		return "", c.statusError("put", path, resp)
	}

	var pr putResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", &types.TransportError{Op: "put", Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if pr.Content.SHA == "" {
		return "", &types.TransportError{Op: "put", Path: path, StatusCode: resp.StatusCode, Err: errors.New("response carries no sha")}
	}
	rev := types.Revision(pr.Content.SHA)
	c.logger.Printf("put %s: %s -> %s", path, expected, rev)
	return rev, nil
}

func (c *Client) download(ctx context.Context, path string, cr contentResponse) ([]byte, error) {
	if cr.DownloadURL == "" {
		return nil, &types.TransportError{Op: "get", Path: path, Err: fmt.Errorf("no inline content (encoding %q) and no download url", cr.Encoding)}
	}
	resp, err := c.do(ctx, http.MethodGet, cr.DownloadURL, nil)
	if err != nil {
		return nil, &types.TransportError{Op: "get", Path: path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("get", path, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TransportError{Op: "get", Path: path, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

func (c *Client) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), strings.Join(segments, "/"))
}

func (c *Client) statusError(op, path string, resp *http.Response) error {
	msg := readAPIMessage(resp.Body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &types.TransportError{Op: op, Path: path, StatusCode: resp.StatusCode, Err: errors.New(msg)}
}

func readAPIMessage(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}
