package matcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// PhotoFetcher retrieves photo bytes for the vision-verification pass.
type PhotoFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mediaType string, err error)
}

// maxPhotoBytes caps downloads; vision providers reject larger payloads
// anyway.
const maxPhotoBytes = 10 << 20

type httpPhotoFetcher struct {
	http *http.Client
}

// NewHTTPPhotoFetcher returns a PhotoFetcher backed by plain HTTP GET.
func NewHTTPPhotoFetcher() PhotoFetcher {
	return &httpPhotoFetcher{
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *httpPhotoFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "fetch photo: build request")
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, "", eris.Wrap(err, "fetch photo")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("fetch photo: status %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, "", eris.Wrap(err, "fetch photo: read body")
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return data, mediaType, nil
}
