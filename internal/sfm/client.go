package sfm

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
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultTransfer   = 10 * time.Minute
	defaultGroup      = "默认组"
	defaultScriptType = "full"
	uploadFilename    = "reference.mp4"
	maxErrorBody      = 4 << 10
)

// HTTPDoer is the subset of *http.Client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Service is the set of remote operations the lifecycle manager drives.
type Service interface {
	CreateProject(ctx context.Context, video []byte, filename string, forceNew bool) (string, error)
	GetStatus(ctx context.Context, projectID string) (Status, error)
	StartReconstruction(ctx context.Context, projectID string) error
	PointCloudURL(ctx context.Context, projectID string, preview bool) (string, error)
	PosesURL(ctx context.Context, projectID string) (string, error)
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Client talks to the reconstruction service.
type Client struct {
	baseURL    string
	staticRoot string
	group      string
	scriptType string
	timeout    time.Duration
	transfer   time.Duration
	httpClient HTTPDoer
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the deadline of status and control calls. Zero or
// negative disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTransferTimeout sets the deadline of video uploads and artifact
// downloads. Zero or negative disables it.
func WithTransferTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.transfer = timeout
	}
}

// WithGroup sets the project group sent with uploads.
func WithGroup(group string) Option {
	return func(c *Client) {
		if group = strings.TrimSpace(group); group != "" {
			c.group = group
		}
	}
}

// WithScriptType sets the reconstruction pipeline requested by StartReconstruction.
func WithScriptType(scriptType string) Option {
	return func(c *Client) {
		if scriptType = strings.TrimSpace(scriptType); scriptType != "" {
			c.scriptType = scriptType
		}
	}
}

// New creates a reconstruction service client rooted at baseURL (typically ending in /api).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("sfm base url required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("sfm base url %q is not absolute", baseURL)
	}
	client := &Client{
		baseURL:    baseURL,
		staticRoot: strings.TrimSuffix(baseURL, "/api"),
		group:      defaultGroup,
		scriptType: defaultScriptType,
		timeout:    defaultTimeout,
		transfer:   defaultTransfer,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// StaticRoot returns the root that relative artifact URLs resolve against.
func (c *Client) StaticRoot() string { return c.staticRoot }

// ResolveURL returns raw unchanged when absolute, else joined to the static root.
func (c *Client) ResolveURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return c.staticRoot + raw
}

// CreateProject uploads a video and returns the new project id. forceNew asks
// the service to skip its own deduplication.
func (c *Client) CreateProject(ctx context.Context, video []byte, filename string, forceNew bool) (string, error) {
	const op = "create project"
	if len(video) == 0 {
		return "", &RemoteError{Op: op, Message: "video is empty"}
	}
	if strings.TrimSpace(filename) == "" {
		filename = uploadFilename
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "video/mp4")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", transportError(op, err)
	}
	if _, err := part.Write(video); err != nil {
		return "", transportError(op, err)
	}
	_ = writer.WriteField("group", c.group)
	_ = writer.WriteField("force_new", strconv.FormatBool(forceNew))
	if err := writer.Close(); err != nil {
		return "", transportError(op, err)
	}

	var payload struct {
		ProjectID string `json:"project_id"`
	}
	if err := c.doJSON(ctx, c.transfer, op, http.MethodPost, c.baseURL+"/upload", writer.FormDataContentType(), &body, &payload); err != nil {
		return "", err
	}
	id := strings.TrimSpace(payload.ProjectID)
	if id == "" {
		return "", &RemoteError{Op: op, StatusCode: http.StatusOK, Message: "upload response missing project_id"}
	}
	return id, nil
}

// GetStatus reads the project's reconstruction status.
func (c *Client) GetStatus(ctx context.Context, projectID string) (Status, error) {
	var status Status
	err := c.doJSON(ctx, c.timeout, "get status", http.MethodGet, c.projectURL(projectID, "status"), "", nil, &status)
	return status, err
}

// StartReconstruction triggers a reconstruction run. The response body is ignored.
func (c *Client) StartReconstruction(ctx context.Context, projectID string) error {
	endpoint := c.projectURL(projectID, "reconstruct") + "?" + url.Values{"script_type": {c.scriptType}}.Encode()
	return c.doJSON(ctx, c.timeout, "start reconstruction", http.MethodPost, endpoint, "", nil, nil)
}

// PointCloudURL resolves the point cloud artifact URL.
func (c *Client) PointCloudURL(ctx context.Context, projectID string, preview bool) (string, error) {
	const op = "point cloud url"
	endpoint := c.projectURL(projectID, "pointcloud")
	if preview {
		endpoint += "?preview=true"
	}
	var payload struct {
		URL string `json:"pointcloud_url"`
	}
	if err := c.doJSON(ctx, c.timeout, op, http.MethodGet, endpoint, "", nil, &payload); err != nil {
		return "", err
	}
	resolved := c.ResolveURL(payload.URL)
	if resolved == "" {
		return "", &RemoteError{Op: op, StatusCode: http.StatusOK, Message: "point cloud not found"}
	}
	return resolved, nil
}

// PosesURL resolves the camera pose artifact URL. An empty result means the
// project has no trajectory.
func (c *Client) PosesURL(ctx context.Context, projectID string) (string, error) {
	var payload struct {
		URL string `json:"poses_url"`
	}
	if err := c.doJSON(ctx, c.timeout, "poses url", http.MethodGet, c.projectURL(projectID, "poses"), "", nil, &payload); err != nil {
		return "", err
	}
	return c.ResolveURL(payload.URL), nil
}

// Fetch downloads rawURL, bypassing intermediate caches.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	const op = "fetch"
	ctx, cancel := withTimeout(ctx, c.transfer)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveURL(rawURL), nil)
	if err != nil {
		return nil, &RemoteError{Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(op, err)
	}
	return data, nil
}

func (c *Client) projectURL(projectID, resource string) string {
	return c.baseURL + "/projects/" + url.PathEscape(strings.TrimSpace(projectID)) + "/" + resource
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) doJSON(ctx context.Context, timeout time.Duration, op, method, endpoint, contentType string, body io.Reader, out any) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &RemoteError{Op: op, Message: "build request", Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if method == http.MethodGet {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// statusError builds a RemoteError from a non-2xx response, preferring a
// JSON message/detail/error field over the raw body.
func statusError(op string, resp *http.Response) *RemoteError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(raw))
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		for _, candidate := range []string{payload.Message, payload.Detail, payload.Error} {
			if strings.TrimSpace(candidate) != "" {
				message = strings.TrimSpace(candidate)
				break
			}
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: message}
}
