package source

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/ivlev/scrubber/internal/sequence"
)

// HTTPLoader fetches frames from a web server that exposes the asset tree.
type HTTPLoader struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLoader(baseURL string, timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTPLoader) Load(ctx context.Context, locator string) (image.Image, error) {
	if _, err := sequence.ParseLocator(locator); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+locator, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: unexpected status %s", locator, resp.Status)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", locator, err)
	}
	return img, nil
}
