// Package loader builds scene assets from glTF references: container decode, environment injection and
// parallel sub-resource fetch on a worker pool.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/Carmen-Shannon/oxy-viewer/engine/environment"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
)

const (
	kindDocument = "document"
	kindBuffer   = "buffer"
	kindImage    = "image"

	defaultWorkers   = 8
	defaultQueueSize = 64
	workerIdle       = 2 * time.Second
)

var (
	errBufferSizeMismatch = errors.New("buffer size mismatch")
	errPipelineClosed     = errors.New("load pipeline is closed")
)

// EnvironmentRequest names the environment map injected into every loaded asset.
// An empty Name skips injection.
type EnvironmentRequest struct {
	Name   string
	Format environment.ImageFormat
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	fetcher     Fetcher
	environment environment.Builder
	workers     int
	queueSize   int
	logger      *slog.Logger

	pool   worker.DynamicWorkerPool
	taskID atomic.Int64

	// lifeMu is held for reading by every load and for writing by Close, so the pool outlives its loads.
	lifeMu *sync.RWMutex
	closed bool
}

// Pipeline turns a Reference into a fully fetched, hierarchy-resolved asset.
// Loads may run concurrently; each builds its own asset and shares only the worker pool.
type Pipeline interface {
	// Load decodes the referenced document, injects the environment, fetches every external buffer and image,
	// and resolves the node hierarchy.
	//
	// Parameters:
	//   - ctx: cancels the load; in-flight fetches observe it
	//   - ref: what to load
	//   - env: the environment to inject before fetching
	//
	// Returns:
	//   - *asset.Asset: the complete asset
	//   - error: *ParseError, *SubResourceFetchError, *EmptyAssetError, *environment.UnsupportedFormatError or
	//     *asset.MalformedAssetError
	Load(ctx context.Context, ref Reference, env EnvironmentRequest) (*asset.Asset, error)

	// Close waits for loads in flight, then stops the worker pool. Later loads fail.
	Close()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a Pipeline with the given options applied.
// Defaults: local files and http(s) through NewDefaultFetcher, 8 fetch workers, no environment injection.
//
// Parameters:
//   - options: a variadic list of PipelineBuilderOption functions
//
// Returns:
//   - Pipeline: the load pipeline
func NewPipeline(options ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		fetcher:   NewDefaultFetcher(30 * time.Second),
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		logger:    slog.Default(),
		lifeMu:    &sync.RWMutex{},
	}
	for _, opt := range options {
		opt(p)
	}
	p.pool = worker.NewDynamicWorkerPool(p.workers, p.queueSize, workerIdle)
	return p
}

func (p *pipeline) Close() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.pool.Stop()
}

func (p *pipeline) Load(ctx context.Context, ref Reference, env EnvironmentRequest) (*asset.Asset, error) {
	p.lifeMu.RLock()
	defer p.lifeMu.RUnlock()
	if p.closed {
		return nil, errPipelineClosed
	}

	start := time.Now()
	name := ref.Name()
	p.logger.Info("[loader] load started", "ref", name)

	data, err := p.readDocument(ctx, ref)
	if err != nil {
		return nil, &SubResourceFetchError{URI: name, Kind: kindDocument, Err: err}
	}

	a, err := p.decode(ref, data)
	if err != nil {
		return nil, err
	}

	// Environment images join the same fetch batch as the model's own images.
	if env.Name != "" && p.environment != nil {
		if _, err := p.environment.Build(ctx, a, env.Name, env.Format); err != nil {
			return nil, errors.Wrapf(err, "failed to inject environment %s", env.Name)
		}
	}

	if err := p.fetchSubResources(ctx, a, newSiblingFetcher(ref.Siblings, ref.fileDir(), p.fetcher)); err != nil {
		return nil, err
	}
	if err := resolveEmbeddedImages(a); err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}
	sniffImageTypes(a)

	if len(a.Scenes) == 0 {
		return nil, &EmptyAssetError{Path: name}
	}
	if a.DefaultScene != nil && (*a.DefaultScene < 0 || *a.DefaultScene >= len(a.Scenes)) {
		return nil, &ParseError{Path: name, Err: fmt.Errorf("default scene %d out of range", *a.DefaultScene)}
	}
	if err := asset.ResolveHierarchy(a); err != nil {
		return nil, errors.Wrapf(err, "failed to resolve hierarchy of %s", name)
	}

	p.logger.Info("[loader] load complete",
		"ref", name,
		"scenes", len(a.Scenes),
		"nodes", len(a.Nodes),
		"images", len(a.Images),
		"elapsed", time.Since(start))
	return a, nil
}

func (p *pipeline) readDocument(ctx context.Context, ref Reference) ([]byte, error) {
	if ref.File != nil {
		return ref.File.ReadAll(ctx)
	}
	if ref.Path == "" {
		return nil, errors.New("reference has neither path nor file")
	}
	return p.fetcher.Fetch(ctx, ref.Path)
}

func (p *pipeline) decode(ref Reference, data []byte) (*asset.Asset, error) {
	name := ref.Name()
	if !ref.IsBinary() {
		return DecodeJSONDocument(name, ref.baseDir(), data)
	}

	jsonData, blobs, err := DecodeBinaryContainer(data)
	if err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}
	doc, err := decodeDocument(jsonData)
	if err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}
	a, err := importDocument(doc, name, ref.baseDir(), blobs)
	if err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}
	return a, nil
}

// fetchJob is one external sub-resource. store runs only if the whole batch is still live.
type fetchJob struct {
	uri   string
	kind  string
	store func([]byte) error
}

// fetchSubResources fetches every external buffer and image on the worker pool and waits for all of them.
// The first failure cancels the batch; later results are dropped.
func (p *pipeline) fetchSubResources(ctx context.Context, a *asset.Asset, fetcher Fetcher) error {
	var jobs []fetchJob
	for i := range a.Buffers {
		buf := &a.Buffers[i]
		if buf.Data != nil || buf.URI == "" {
			continue
		}
		jobs = append(jobs, fetchJob{uri: buf.URI, kind: kindBuffer, store: func(data []byte) error {
			if len(data) < buf.ByteLength {
				return errors.Wrapf(errBufferSizeMismatch, "got %d bytes, want %d", len(data), buf.ByteLength)
			}
			buf.Data = data
			return nil
		}})
	}
	for i := range a.Images {
		img := &a.Images[i]
		if img.Data != nil || img.URI == "" {
			continue
		}
		jobs = append(jobs, fetchJob{uri: img.URI, kind: kindImage, store: func(data []byte) error {
			img.Data = data
			return nil
		}})
	}
	if len(jobs) == 0 {
		return ctx.Err()
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(job fetchJob, err error) {
		once.Do(func() {
			firstErr = &SubResourceFetchError{URI: job.uri, Kind: job.kind, Err: err}
			cancel()
		})
	}

	for _, job := range jobs {
		if batchCtx.Err() != nil {
			break
		}
		wg.Add(1)
		p.pool.SubmitTask(worker.Task{
			ID: int(p.taskID.Add(1)),
			Do: func() (_ any, err error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("panic while fetching: %v", r)
						fail(job, err)
					}
				}()

				data, err := fetcher.Fetch(batchCtx, job.uri)
				if err != nil {
					fail(job, err)
					return nil, err
				}
				if batchCtx.Err() != nil {
					return nil, batchCtx.Err()
				}
				if err := job.store(data); err != nil {
					fail(job, err)
					return nil, err
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	if firstErr != nil {
		p.logger.Warn("[loader] sub-resource fetch failed", "error", firstErr)
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Debug("[loader] sub-resources fetched", "count", len(jobs))
	return nil
}

// resolveEmbeddedImages copies images stored in buffer views once buffers are available.
func resolveEmbeddedImages(a *asset.Asset) error {
	for i := range a.Images {
		img := &a.Images[i]
		if img.BufferView == nil || img.Data != nil {
			continue
		}
		data, err := a.BufferViewBytes(*img.BufferView)
		if err != nil {
			return errors.Wrapf(err, "image %d", i)
		}
		img.Data = data
	}
	return nil
}

// sniffImageTypes fills missing MIME types from the image bytes.
func sniffImageTypes(a *asset.Asset) {
	for i := range a.Images {
		img := &a.Images[i]
		if img.MimeType != "" || len(img.Data) == 0 {
			continue
		}
		kind, err := filetype.Match(img.Data)
		if err != nil || kind == filetype.Unknown {
			continue
		}
		img.MimeType = kind.MIME.Value
	}
}
