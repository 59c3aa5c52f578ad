package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrFetchFailed = errors.New("fetch failed")

// Repository reads the content behind a URL
type Repository interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError is returned when the remote answers with anything but 200.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %v: HTTP status code %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrFetchFailed
}

var _ Repository = &handler{}

type handler struct {
	client  *http.Client
	maxSize int64
}

// New creates a strict fetcher: redirects are not followed and only 200 is accepted.
// maxSize bounds the body read, 0 means unbounded.
func New(timeout time.Duration, maxSize int64) *handler {
	return &handler{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxSize: maxSize,
	}
}

func (h *handler) Fetch(ctx context.Context, url string) ([]byte, error) {
	log.Info().Msgf("fetching %v", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Info().Msgf("fetch of %v received status code %v", url, resp.StatusCode)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if h.maxSize > 0 {
		body = io.LimitReader(resp.Body, h.maxSize+1)
	}

	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body of %v: %v", ErrFetchFailed, url, err)
	}
	if h.maxSize > 0 && int64(len(payload)) > h.maxSize {
		return nil, fmt.Errorf("%w: %v is larger than %d bytes", ErrFetchFailed, url, h.maxSize)
	}

	return payload, nil
}
