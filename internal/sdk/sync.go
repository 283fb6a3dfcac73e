package sdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
)

// Init declares the client manifest and fetches the transfer plan.
func (c *Client) Init(ctx context.Context, params *InitParams) (*InitResponse, error) {
	var resp InitResponse
	var apiErr APIError

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&resp).
		SetErrorResult(&apiErr).
		Post(v1SyncInit)

	if err := handleAPIError(res, err, "sync init"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload sends one file's content to the server.
func (c *Client) Upload(ctx context.Context, relPath string, content io.Reader) (*UploadResponse, error) {
	var resp UploadResponse
	var apiErr APIError

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", relPath).
		SetFileReader("file", path.Base(relPath), content).
		SetSuccessResult(&resp).
		SetErrorResult(&apiErr).
		Put(v1SyncUpload)

	if err := handleAPIError(res, err, "sync upload "+relPath); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download fetches one file's current server content.
func (c *Client) Download(ctx context.Context, relPath string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", relPath).
		Get(v1SyncDownload)
	if err != nil {
		return nil, fmt.Errorf("sync download %s: %w", relPath, err)
	}

	switch res.StatusCode {
	case http.StatusOK:
		return res.ToBytes()
	case http.StatusNotFound:
		return nil, fmt.Errorf("sync download %s: %w", relPath, ErrFileNotFound)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("sync download %s: %w", relPath, ErrInvalidPath)
	default:
		return nil, fmt.Errorf("sync download %s: http %d", relPath, res.StatusCode)
	}
}

// Commit submits the session's resolution instructions.
func (c *Client) Commit(ctx context.Context, params *CommitParams) (*CommitResponse, error) {
	var resp CommitResponse
	var apiErr APIError

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&resp).
		SetErrorResult(&apiErr).
		Post(v1SyncCommit)

	if err := handleAPIError(res, err, "sync commit"); err != nil {
		return nil, err
	}
	return &resp, nil
}
