package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/engine"
	"github.com/wippyai/svgpng/errors"
	"github.com/wippyai/svgpng/render"
)

// Config holds configuration for a Runtime. The zero value is usable.
type Config struct {
	engine.Config

	// PoolSize caps the number of live renderer instances.
	// 0 means GOMAXPROCS.
	PoolSize int

	// Logger receives debug and warning logs. Nil keeps each package's
	// current logger.
	Logger *zap.Logger
}

// Runtime renders documents through one compiled renderer module.
type Runtime struct {
	engine *engine.Engine
	module *engine.Module
	pool   *pool
	mounts []engine.Mount
	log    *zap.Logger
	closed atomic.Bool
}

// New compiles the renderer and creates its first instance, so an
// incompatible module fails here rather than on the first render.
func New(ctx context.Context, wasm []byte, cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger != nil {
		engine.SetLogger(cfg.Logger)
		render.SetLogger(cfg.Logger)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	eng, err := engine.NewEngine(ctx, &cfg.Config)
	if err != nil {
		return nil, err
	}

	mod, err := eng.LoadModule(ctx, wasm)
	if err != nil {
		eng.Close(ctx)
		return nil, err
	}

	p := newPool(mod, cfg.PoolSize)
	if err := p.warm(ctx); err != nil {
		eng.Close(ctx)
		return nil, err
	}

	log.Debug("runtime ready", zap.Int("pool_size", p.size), zap.Int("wasm_bytes", len(wasm)))
	return &Runtime{
		engine: eng,
		module: mod,
		pool:   p,
		mounts: cfg.Mounts,
		log:    log,
	}, nil
}

// Render renders svg to PNG bytes. opts may be nil.
func (r *Runtime) Render(ctx context.Context, svg string, opts *svgpng.Options) ([]byte, error) {
	if r.closed.Load() {
		return nil, errors.Closed("runtime")
	}
	if svg == "" {
		return nil, errors.EmptyDocument()
	}

	inst, err := r.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	png, err := render.Render(ctx, inst, svg, opts)
	r.pool.release(ctx, inst)

	if err != nil {
		r.log.Debug("render failed", zap.Stringer("class", errors.ClassOf(err)), zap.Error(err))
		return nil, err
	}
	return png, nil
}

// RenderFile reads the document at path and renders it. When
// opts.ResourcesDir is empty and the document's directory is mounted, the
// mounted directory becomes the resources dir.
func (r *Runtime) RenderFile(ctx context.Context, path string, opts *svgpng.Options) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseValidate, errors.KindInvalidInput).
			Path("document").
			Detail("read %s", path).
			Cause(err).
			Build()
	}

	if opts == nil || opts.ResourcesDir == "" {
		if dir, ok := r.guestDir(filepath.Dir(path)); ok {
			o := svgpng.Options{}
			if opts != nil {
				o = *opts
			}
			o.ResourcesDir = dir
			opts = &o
		}
	}
	return r.Render(ctx, string(data), opts)
}

// guestDir maps a host directory to its path inside the renderer.
func (r *Runtime) guestDir(hostDir string) (string, bool) {
	abs, err := filepath.Abs(hostDir)
	if err != nil {
		return "", false
	}
	for _, m := range r.mounts {
		root, err := filepath.Abs(m.HostPath)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		guest := strings.TrimSuffix(m.GuestPath, "/")
		if rel == "." {
			if guest == "" {
				return "/", true
			}
			return guest, true
		}
		return guest + "/" + filepath.ToSlash(rel), true
	}
	return "", false
}

// Close closes every pooled instance, the module and the engine.
// Renders still in flight must finish first.
func (r *Runtime) Close(ctx context.Context) error {
	if r.closed.Swap(true) {
		return nil
	}
	r.pool.close(ctx)
	if err := r.module.Close(ctx); err != nil {
		r.log.Warn("close module", zap.Error(err))
	}
	return r.engine.Close(ctx)
}
