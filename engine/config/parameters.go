package config

import "sync"

// Params is a snapshot of the rendering parameters.
type Params struct {
	// Environment is the environment folder name under the image root.
	Environment string `json:"environment"`
	// UseHDR selects HDR environment images instead of JPEG.
	UseHDR     bool       `json:"useHdr"`
	ClearColor [4]float32 `json:"clearColor"`
}

// Parameters is the rendering parameters object shared by the orchestrator, the renderer and the control surface.
// All access goes through its methods.
type Parameters struct {
	mu     sync.RWMutex
	params Params
}

// NewParameters creates Parameters seeded from the rendering section of a Config.
// An empty environment name falls back to DefaultEnvironment.
func NewParameters(rc RenderingConfig) *Parameters {
	p := Params{
		Environment: rc.Environment,
		UseHDR:      rc.UseHDR,
		ClearColor:  rc.ClearColor,
	}
	if p.Environment == "" {
		p.Environment = DefaultEnvironment
	}
	return &Parameters{params: p}
}

// Get returns a copy of the current parameters.
func (p *Parameters) Get() Params {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params
}

// Set replaces the parameters. An empty environment name keeps the current one.
func (p *Parameters) Set(v Params) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v.Environment == "" {
		v.Environment = p.params.Environment
	}
	p.params = v
}

// Update applies fn to the parameters under the write lock and returns the result.
//
// Parameters:
//   - fn: mutates the parameters in place
//
// Returns:
//   - Params: the parameters after fn ran
func (p *Parameters) Update(fn func(*Params)) Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.params)
	return p.params
}

func (p *Parameters) Environment() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params.Environment
}

func (p *Parameters) UseHDR() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params.UseHDR
}

func (p *Parameters) ClearColor() [4]float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params.ClearColor
}
