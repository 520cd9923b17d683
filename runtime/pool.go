package runtime

import (
	"context"
	goruntime "runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/svgpng/engine"
	"github.com/wippyai/svgpng/errors"
)

// pool hands out renderer instances exclusively. slots bounds the number of
// live instances; idle holds the ones not in use.
type pool struct {
	module *engine.Module
	slots  chan struct{}
	idle   chan *engine.Instance
	size   int

	mu     sync.Mutex
	closed bool
}

func newPool(mod *engine.Module, size int) *pool {
	if size <= 0 {
		size = goruntime.GOMAXPROCS(0)
	}
	return &pool{
		module: mod,
		slots:  make(chan struct{}, size),
		idle:   make(chan *engine.Instance, size),
		size:   size,
	}
}

// warm creates one idle instance.
func (p *pool) warm(ctx context.Context) error {
	inst, err := p.module.Instantiate(ctx)
	if err != nil {
		return err
	}
	p.idle <- inst
	return nil
}

func (p *pool) acquire(ctx context.Context) (*engine.Instance, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindClosed, ctx.Err(), "wait for renderer instance")
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		<-p.slots
		return nil, errors.Closed("runtime")
	}

	select {
	case inst := <-p.idle:
		return inst, nil
	default:
	}

	inst, err := p.module.Instantiate(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return inst, nil
}

// release returns inst to the pool, or closes it when a guest call on it
// failed or the pool is closed.
func (p *pool) release(ctx context.Context, inst *engine.Instance) {
	defer func() { <-p.slots }()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed || inst.Broken() {
		if inst.Broken() {
			engine.Logger().Warn("discarding renderer instance after failed guest call")
		}
		if err := inst.Close(ctx); err != nil {
			engine.Logger().Warn("close instance", zap.Error(err))
		}
		return
	}
	p.idle <- inst
}

func (p *pool) close(ctx context.Context) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case inst := <-p.idle:
			_ = inst.Close(ctx)
		default:
			return
		}
	}
}
