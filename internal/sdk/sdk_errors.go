package sdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrFileNotFound = errors.New("sdk: file not found")
	ErrInvalidPath  = errors.New("sdk: invalid path")
)

// APIError mirrors the server's wire error envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sdk: api error code=%s message=%s", e.Code, e.Message)
}

// handleAPIError folds transport errors and error envelopes into one error.
func handleAPIError(res *req.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.IsErrorState() {
		if apiErr, ok := res.ErrorResult().(*APIError); ok && apiErr != nil {
			return fmt.Errorf("%s: %w", op, apiErr)
		}
		return fmt.Errorf("%s: http %d", op, res.StatusCode)
	}
	return nil
}
