package renderer

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
)

// Batch is one DrawBatch call captured by a Recorder.
type Batch struct {
	Frame       int
	AssetID     uint64
	Nodes       []int
	CameraIndex int
	AlphaBlend  bool
	Sort        bool
}

// Recorder is a Renderer that draws nothing and records every call. It backs headless runs and tests.
type Recorder struct {
	mu *sync.Mutex

	frames   int
	inFrame  bool
	width    int
	height   int
	batches  []Batch
	released []uint64

	// BeginErr, when set, is returned by BeginFrame.
	BeginErr error
}

var _ Renderer = &Recorder{}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}}
}

func (r *Recorder) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.BeginErr != nil {
		return r.BeginErr
	}
	if r.inFrame {
		return errFrameStarted
	}
	r.inFrame = true
	return nil
}

func (r *Recorder) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
}

func (r *Recorder) DrawBatch(a *asset.Asset, nodes []int, cameraIndex int, alphaBlend, sortBackToFront bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inFrame {
		return errNoFrame
	}
	r.batches = append(r.batches, Batch{
		Frame:       r.frames,
		AssetID:     a.ID(),
		Nodes:       slices.Clone(nodes),
		CameraIndex: cameraIndex,
		AlphaBlend:  alphaBlend,
		Sort:        sortBackToFront,
	})
	return nil
}

func (r *Recorder) EndFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inFrame {
		return
	}
	r.inFrame = false
	r.frames++
}

func (r *Recorder) ReleaseAsset(a *asset.Asset) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, a.ID())
}

// Frames returns the number of completed frames.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Size returns the last size passed to Resize.
func (r *Recorder) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// Batches returns a copy of every recorded batch.
func (r *Recorder) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.batches)
}

// Released returns the IDs of released assets in release order.
func (r *Recorder) Released() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.released)
}

// Reset clears recorded batches and releases. The frame counter keeps counting.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = nil
	r.released = nil
}
