// Package sdk is the Go client for the QuillBox sync wire protocol.
package sdk

import (
	"time"

	"github.com/imroc/req/v3"

	"github.com/quillbox/quillbox/internal/version"
)

const (
	v1SyncInit     = "/api/v1/sync/init"
	v1SyncUpload   = "/api/v1/sync/upload"
	v1SyncDownload = "/api/v1/sync/download"
	v1SyncCommit   = "/api/v1/sync/commit"
)

// Client talks to a QuillBox server. One client may run many sync sessions.
type Client struct {
	http    *req.Client
	baseURL string
}

func New(baseURL string) *Client {
	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetUserAgent("QuillBox/" + version.Version)

	return &Client{
		http:    client,
		baseURL: baseURL,
	}
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}
