package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/filerelay/internal/filex"
)

// Download streams the body of a GET on url into dst, reporting cumulative
// progress against total. Non-2xx responses are errors.
func Download(ctx context.Context, client *http.Client, url string, dst io.Writer, total int64, progress func(done, total int64)) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}

	if total <= 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	return filex.CopyWithProgress(ctx, dst, resp.Body, total, progress)
}
