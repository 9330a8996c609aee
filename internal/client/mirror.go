package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/AlexZinkM/sovereign-ledger/internal/metrics"
	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
)

const (
	// LedgerPrefix is the mirror directory holding transaction records.
	LedgerPrefix = "ledger"

	defaultMirrorTimeout  = 15 * time.Second
	defaultRetryInterval  = 500 * time.Millisecond
	defaultMaxRetries     = 3
	defaultReconcileLimit = 4
	maxErrorBody          = 512
)

// StatusError is a non-2xx response from the mirror.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mirror %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return e.StatusCode >= 500
}

// MirrorEntry is one file in a mirror directory listing.
type MirrorEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
	Type        string `json:"type"`
}

// MirrorConfig configures a MirrorClient.
type MirrorConfig struct {
	BaseURL    string // contents endpoint, e.g. https://api.github.com/repos/org/ledger/contents
	Token      string
	Branch     string
	Timeout    time.Duration
	MaxRetries int
}

// MirrorClient talks to the append-only ledger mirror over its contents API.
type MirrorClient struct {
	baseURL        string
	baseHost       string
	token          string
	branch         string
	maxRetries     int
	retryInterval  time.Duration
	reconcileLimit int
	client         *http.Client
	logger         zerolog.Logger
	metrics        *metrics.Metrics
}

// MirrorOption configures a MirrorClient.
type MirrorOption func(*MirrorClient)

// WithMirrorLogger sets the logger.
func WithMirrorLogger(logger zerolog.Logger) MirrorOption {
	return func(c *MirrorClient) { c.logger = logger }
}

// WithMirrorMetrics sets the metrics sink.
func WithMirrorMetrics(m *metrics.Metrics) MirrorOption {
	return func(c *MirrorClient) { c.metrics = m }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) MirrorOption {
	return func(c *MirrorClient) { c.client = hc }
}

// WithRetryInterval sets the initial backoff interval between attempts.
func WithRetryInterval(d time.Duration) MirrorOption {
	return func(c *MirrorClient) { c.retryInterval = d }
}

// WithReconcileConcurrency bounds parallel publishes during ReconcileMissing.
func WithReconcileConcurrency(n int) MirrorOption {
	return func(c *MirrorClient) {
		if n > 0 {
			c.reconcileLimit = n
		}
	}
}

// NewMirrorClient creates a new mirror client
func NewMirrorClient(cfg MirrorConfig, opts ...MirrorOption) *MirrorClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	c := &MirrorClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		branch:         cfg.Branch,
		maxRetries:     maxRetries,
		retryInterval:  defaultRetryInterval,
		reconcileLimit: defaultReconcileLimit,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: zerolog.Nop(),
	}
	if u, err := url.Parse(c.baseURL); err == nil {
		c.baseHost = u.Host
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fileResponse struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Path string `json:"path"`
	SHA  string `json:"sha"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content fileResponse `json:"content"`
	Commit  struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Publish upserts record at its deterministic path. When a revision already
// exists its sha is sent so the mirror treats the write as an update, so
// publishing the same transaction twice leaves exactly one entry.
// Only a successful return means the record is durable.
func (c *MirrorClient) Publish(ctx context.Context, record *model.MirrorRecord) (model.RevisionRef, error) {
	path := record.MirrorPath()
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return model.RevisionRef{}, fmt.Errorf("failed to encode record %s: %w", record.ID, err)
	}

	var ref model.RevisionRef
	err = c.retry(ctx, "publish", func() error {
		existing, found, err := c.stat(ctx, path)
		if err != nil {
			return err
		}
		req := putRequest{
			Message: fmt.Sprintf("ledger: %s %s", record.Type, record.ID),
			Content: base64.StdEncoding.EncodeToString(content),
			Branch:  c.branch,
		}
		if found {
			req.SHA = existing.SHA
		}
		ref, err = c.put(ctx, path, req)
		return err
	})
	if err != nil {
		return model.RevisionRef{}, fmt.Errorf("failed to publish %s: %w", path, err)
	}
	c.logger.Debug().Str("path", path).Str("sha", ref.SHA).Msg("mirror record published")
	return ref, nil
}

// Stat returns the current revision at path. found is false when nothing is stored there.
func (c *MirrorClient) Stat(ctx context.Context, path string) (ref model.RevisionRef, found bool, err error) {
	err = c.retry(ctx, "stat", func() error {
		ref, found, err = c.stat(ctx, path)
		return err
	})
	return ref, found, err
}

// ListEntries lists the files under prefix, most recent first, capped at limit.
// A limit of zero or less returns every entry. A missing directory is empty.
func (c *MirrorClient) ListEntries(ctx context.Context, prefix string, limit int) ([]MirrorEntry, error) {
	var listing []MirrorEntry
	err := c.retry(ctx, "list", func() error {
		listing = nil
		resp, err := c.do(ctx, http.MethodGet, c.contentsURL(prefix), nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil
		}
		if err := checkStatus("list", resp); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode listing: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	files := listing[:0]
	for _, e := range listing {
		if e.Type == "" || e.Type == "file" {
			files = append(files, e)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		ti, _, oki := ParseEntryName(files[i].Name)
		tj, _, okj := ParseEntryName(files[j].Name)
		if oki && okj && ti != tj {
			return ti > tj
		}
		return files[i].Name > files[j].Name
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// FetchEntry downloads and decodes one record.
func (c *MirrorClient) FetchEntry(ctx context.Context, downloadURL string) (*model.MirrorRecord, error) {
	var record model.MirrorRecord
	err := c.retry(ctx, "fetch", func() error {
		resp, err := c.do(ctx, http.MethodGet, downloadURL, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("entry %s: %w", downloadURL, sentinel.ErrNotFound))
		}
		if err := checkStatus("fetch", resp); err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = bytes.TrimPrefix(body, []byte{0xEF, 0xBB, 0xBF})
		if err := json.Unmarshal(body, &record); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode record: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entry: %w", err)
	}
	return &record, nil
}

// ParseEntryName extracts the timestamp and transaction id from a
// tx-<timestampMillis>-<id>.json file name.
func ParseEntryName(name string) (timestamp int64, txID string, ok bool) {
	rest, found := strings.CutPrefix(name, "tx-")
	if !found {
		return 0, "", false
	}
	rest, found = strings.CutSuffix(rest, ".json")
	if !found {
		return 0, "", false
	}
	tsPart, id, found := strings.Cut(rest, "-")
	if !found || id == "" {
		return 0, "", false
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return ts, id, true
}

func (c *MirrorClient) stat(ctx context.Context, path string) (model.RevisionRef, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.contentsURL(path), nil)
	if err != nil {
		return model.RevisionRef{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.RevisionRef{}, false, nil
	}
	if err := checkStatus("stat", resp); err != nil {
		return model.RevisionRef{}, false, err
	}
	var file fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return model.RevisionRef{}, false, backoff.Permanent(fmt.Errorf("failed to decode %s: %w", path, err))
	}
	return model.RevisionRef{Path: path, SHA: file.SHA}, true, nil
}

func (c *MirrorClient) put(ctx context.Context, path string, req putRequest) (model.RevisionRef, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.RevisionRef{}, backoff.Permanent(err)
	}
	resp, err := c.do(ctx, http.MethodPut, c.contentsURL(path), body)
	if err != nil {
		return model.RevisionRef{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus("put", resp); err != nil {
		return model.RevisionRef{}, err
	}
	var out putResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.RevisionRef{}, backoff.Permanent(fmt.Errorf("failed to decode put response: %w", err))
	}
	return model.RevisionRef{Path: path, SHA: out.Content.SHA, CommitSHA: out.Commit.SHA}, nil
}

func (c *MirrorClient) contentsURL(path string) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if c.branch == "" {
		return u
	}
	return u + "?ref=" + url.QueryEscape(c.branch)
}

func (c *MirrorClient) do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Listings may point downloads at other hosts; the token stays with the mirror.
	if c.token != "" && c.baseHost != "" && req.URL.Host == c.baseHost {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into a StatusError, permanent unless retryable.
func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	if statusErr.Retryable() {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}

func (c *MirrorClient) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
	start := time.Now()
	err := backoff.RetryNotify(fn, policy, func(err error, next time.Duration) {
		c.logger.Warn().Err(err).Str("op", op).Dur("retry_in", next).Msg("mirror request failed, retrying")
	})
	c.metrics.ObserveMirror(op, err, time.Since(start))
	return err
}

// IsUnavailable reports whether err means the mirror could not be reached or kept failing.
func IsUnavailable(err error) bool {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Retryable()
}
