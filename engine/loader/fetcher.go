package loader

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/pkg/errors"
)

// Fetcher loads the bytes behind a resolved reference.
// Implementations must be safe for concurrent use; the pipeline calls Fetch from worker goroutines.
type Fetcher interface {
	// Fetch loads uri.
	//
	// Parameters:
	//   - ctx: cancels the fetch
	//   - uri: a file path or URL
	//
	// Returns:
	//   - []byte: the content
	//   - error: error if the resource could not be loaded
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// OSFetcher reads local files.
type OSFetcher struct{}

var _ Fetcher = OSFetcher{}

func (OSFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", uri)
	}
	return data, nil
}

// FSFetcher reads from an fs.FS using slash-separated paths relative to its root.
type FSFetcher struct {
	FS fs.FS
}

var _ Fetcher = FSFetcher{}

func (f FSFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(path.Clean(filepath.ToSlash(uri)), "/")
	data, err := fs.ReadFile(f.FS, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	return data, nil
}

// HTTPFetcher performs GET requests. Any status other than 200 is an error.
type HTTPFetcher struct {
	Client *http.Client
}

var _ Fetcher = HTTPFetcher{}

func (f HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "bad request for %s", uri)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", uri)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("GET %s: %s", uri, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read body of %s", uri)
	}
	return data, nil
}

// MultiFetcher routes http(s) references to Remote and everything else to Local.
type MultiFetcher struct {
	Remote Fetcher
	Local  Fetcher
}

var _ Fetcher = MultiFetcher{}

// NewDefaultFetcher returns a MultiFetcher over the local disk and an HTTP client with the given timeout.
func NewDefaultFetcher(timeout time.Duration) MultiFetcher {
	return MultiFetcher{
		Remote: HTTPFetcher{Client: &http.Client{Timeout: timeout}},
		Local:  OSFetcher{},
	}
}

func (m MultiFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if common.IsRemote(uri) {
		return m.Remote.Fetch(ctx, uri)
	}
	return m.Local.Fetch(ctx, uri)
}

// siblingFetcher serves relative references from files dropped alongside the document. Other relative
// references resolve against dir, the dropped document's directory, when it is known. The rest go to next.
type siblingFetcher struct {
	files map[string]File
	dir   string
	next  Fetcher
}

func newSiblingFetcher(siblings []File, dir string, next Fetcher) Fetcher {
	if len(siblings) == 0 && dir == "" {
		return next
	}
	files := make(map[string]File, len(siblings))
	for _, f := range siblings {
		files[f.Name()] = f
	}
	return &siblingFetcher{files: files, dir: dir, next: next}
}

func (s *siblingFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if f, ok := s.files[uri]; ok {
		return f.ReadAll(ctx)
	}
	relative := !common.IsRemote(uri) && !filepath.IsAbs(uri)
	if f, ok := s.files[path.Base(filepath.ToSlash(uri))]; ok && relative {
		return f.ReadAll(ctx)
	}
	if relative && s.dir != "" {
		return s.next.Fetch(ctx, filepath.Join(s.dir, filepath.FromSlash(uri)))
	}
	return s.next.Fetch(ctx, uri)
}
