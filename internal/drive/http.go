package drive

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
)

// APIError is a non-2xx response from the Drive API.
type APIError struct {
	StatusCode int
	Body       string

	cause error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive api: non-2xx status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.cause }

// NotFound reports whether the file or folder does not exist or is not shared.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusForbidden
}

// asAPIError turns a googleapi error into an *APIError. Other errors, such as
// transport failures, pass through.
func asAPIError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	body := gerr.Message
	if body == "" {
		body = gerr.Body
	}
	return &APIError{StatusCode: gerr.Code, Body: body, cause: err}
}

func readCapped(r io.Reader, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(&io.LimitedReader{R: r, N: limit + 1})
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return raw, nil
}
