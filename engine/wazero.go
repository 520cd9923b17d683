package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/bridge"
	"github.com/wippyai/svgpng/errors"
)

// Engine hosts renderer modules on a single wazero runtime.
type Engine struct {
	runtime      wazero.Runtime
	cache        wazero.CompilationCache
	cfg          Config
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Mount exposes a host directory to the renderer, read-only.
type Mount struct {
	HostPath  string
	GuestPath string
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CacheDir enables wazero's on-disk compilation cache. Empty disables it.
	CacheDir string

	// Mounts are the directories the renderer can read fonts and linked
	// images from. Paths in Options are resolved against GuestPath.
	Mounts []Mount

	// Stdout and Stderr receive the renderer's own diagnostics.
	// Nil discards them.
	Stdout io.Writer
	Stderr io.Writer
}

// NewEngine creates a new wazero-based engine. cfg may be nil.
func NewEngine(ctx context.Context, cfg *Config) (*Engine, error) {
	e := &Engine{}
	if cfg != nil {
		e.cfg = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if e.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	if e.cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(e.cfg.CacheDir)
		if err != nil {
			return nil, errors.Load("open compilation cache", err)
		}
		e.cache = cache
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return e, nil
}

func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// InitWASI instantiates the WASI singleton for this engine's runtime.
// Safe for concurrent calls from multiple modules sharing the same engine.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(WASIModule) != nil {
		e.wasiInitDone.Store(true)
		return nil
	}

	if _, err := instantiateWASI(ctx, e.runtime); err != nil {
		if e.runtime.Module(WASIModule) == nil {
			return errors.Instantiation(fmt.Errorf("instantiate WASI: %w", err))
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// LoadModule compiles a renderer and checks its import and export surface.
func (e *Engine) LoadModule(ctx context.Context, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile renderer", err)
	}

	if err := checkImports(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	m := &Module{engine: e, compiled: compiled}
	if err := m.resolveExports(); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	Logger().Debug("renderer loaded",
		zap.String("alloc", m.allocName),
		zap.String("free", m.freeName),
		zap.Bool("abi_version", m.hasVersion))
	return m, nil
}

// checkImports fails with every import the host cannot satisfy.
func checkImports(compiled wazero.CompiledModule) error {
	var missing []string
	for _, fn := range compiled.ImportedFunctions() {
		mod, name, _ := fn.Import()
		if mod != WASIModule {
			missing = append(missing, mod+"#"+name)
		}
	}
	for _, mem := range compiled.ImportedMemories() {
		mod, name, _ := mem.Import()
		missing = append(missing, mod+"#"+name)
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.NewMissingImportsError(missing)
}

// Module is a compiled renderer
type Module struct {
	engine     *Engine
	compiled   wazero.CompiledModule
	allocName  string
	allocArgs  int
	freeName   string
	freeArgs   int
	hasVersion bool
	usesWASI   bool
}

func (m *Module) resolveExports() error {
	funcs := m.compiled.ExportedFunctions()

	if _, ok := m.compiled.ExportedMemories()[MemoryExport]; !ok {
		return missingExport("memory", MemoryExport)
	}
	if err := checkSignature(funcs, RenderExport, 4, 1); err != nil {
		return err
	}
	if err := checkSignature(funcs, ReleaseExport, 2, 0); err != nil {
		return err
	}

	for _, name := range allocExports {
		if def, ok := funcs[name]; ok {
			m.allocName = name
			m.allocArgs = len(def.ParamTypes())
			break
		}
	}
	switch {
	case m.allocName == "":
		return missingExport("allocator", allocExports[0])
	case m.allocArgs != 1 && m.allocArgs != 4:
		return errors.Load(fmt.Sprintf("allocator %s takes %d params, want 1 or 4", m.allocName, m.allocArgs), nil)
	}

	for _, name := range freeExports {
		if def, ok := funcs[name]; ok {
			m.freeName = name
			m.freeArgs = len(def.ParamTypes())
			break
		}
	}
	if m.freeName == "" && m.allocName != CabiRealloc {
		return missingExport("deallocator", freeExports[0])
	}

	if _, ok := funcs[ABIVersionExport]; ok {
		if err := checkSignature(funcs, ABIVersionExport, 0, 1); err != nil {
			return err
		}
		m.hasVersion = true
	}

	for _, fn := range m.compiled.ImportedFunctions() {
		if mod, _, _ := fn.Import(); mod == WASIModule {
			m.usesWASI = true
			break
		}
	}
	return nil
}

func missingExport(what, name string) error {
	return errors.New(errors.PhaseLoad, errors.KindNotFound).
		Path("exports", name).
		Detail("renderer does not export a %s", what).
		Build()
}

func checkSignature(funcs map[string]api.FunctionDefinition, name string, params, results int) error {
	def, ok := funcs[name]
	if !ok {
		return missingExport("function", name)
	}
	p, r := def.ParamTypes(), def.ResultTypes()
	if len(p) != params || len(r) != results {
		return errors.New(errors.PhaseLoad, errors.KindInvalidModule).
			Path("exports", name).
			Detail("signature has %d params and %d results, want %d and %d", len(p), len(r), params, results).
			Build()
	}
	for _, t := range append(append([]api.ValueType{}, p...), r...) {
		if t != api.ValueTypeI32 {
			return errors.New(errors.PhaseLoad, errors.KindInvalidModule).
				Path("exports", name).
				Detail("signature uses %s, want i32 only", api.ValueTypeName(t)).
				Build()
		}
	}
	return nil
}

// Close releases the compiled code. Instances must be closed first.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instantiate creates an anonymous instance, runs _initialize when the module
// exports it, and checks the record version.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	if m.usesWASI {
		if err := m.engine.InitWASI(ctx); err != nil {
			return nil, err
		}
	}

	modConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous for parallel instantiation
		WithStartFunctions(InitializeExport).
		WithSysWalltime().
		WithSysNanotime()

	cfg := m.engine.cfg
	if cfg.Stdout != nil {
		modConfig = modConfig.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modConfig = modConfig.WithStderr(cfg.Stderr)
	}
	if len(cfg.Mounts) > 0 {
		fsConfig := wazero.NewFSConfig()
		for _, mnt := range cfg.Mounts {
			fsConfig = fsConfig.WithReadOnlyDirMount(mnt.HostPath, mnt.GuestPath)
		}
		modConfig = modConfig.WithFSConfig(fsConfig)
	}

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	if m.hasVersion {
		if err := checkVersion(ctx, mod); err != nil {
			_ = mod.Close(ctx)
			return nil, err
		}
	}

	inst := &Instance{
		mod:       mod,
		memory:    &Memory{mem: mod.Memory()},
		renderFn:  mod.ExportedFunction(RenderExport),
		releaseFn: mod.ExportedFunction(ReleaseExport),
		stack:     make([]uint64, 4),
	}
	inst.alloc = &allocator{
		inst:      inst,
		allocFn:   mod.ExportedFunction(m.allocName),
		allocArgs: m.allocArgs,
		stack:     make([]uint64, 4),
	}
	if m.freeName != "" {
		inst.alloc.freeFn = mod.ExportedFunction(m.freeName)
		inst.alloc.freeArgs = m.freeArgs
	}

	debugf("instantiated renderer, memory %d bytes", inst.memory.Size())
	return inst, nil
}

func checkVersion(ctx context.Context, mod api.Module) error {
	res, err := mod.ExportedFunction(ABIVersionExport).Call(ctx)
	if err != nil {
		return errors.Trap(ABIVersionExport, err)
	}
	if got := int32(uint32(res[0])); got != bridge.RecordVersion {
		return errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Value(got).
			Detail("renderer expects options record version %d, host writes version %d", got, bridge.RecordVersion).
			Build()
	}
	return nil
}

// Instance is one instantiated renderer. It is not safe for concurrent use.
type Instance struct {
	mod       api.Module
	memory    *Memory
	alloc     *allocator
	renderFn  api.Function
	releaseFn api.Function
	stack     []uint64
	broken    bool
}

func (i *Instance) Memory() svgpng.Memory {
	return i.memory
}

func (i *Instance) Allocator() svgpng.Allocator {
	return i.alloc
}

// Render calls the render export. A returned error means the call trapped.
func (i *Instance) Render(ctx context.Context, doc, record, outPtr, outLen uint32) (int32, error) {
	if i.mod == nil {
		return 0, errors.Closed("instance")
	}
	i.stack[0] = uint64(doc)
	i.stack[1] = uint64(record)
	i.stack[2] = uint64(outPtr)
	i.stack[3] = uint64(outLen)
	if err := i.renderFn.CallWithStack(ctx, i.stack[:4]); err != nil {
		i.broken = true
		return 0, err
	}
	return int32(uint32(i.stack[0])), nil
}

// FreeOutput hands an output buffer back to the renderer's own allocator.
func (i *Instance) FreeOutput(ctx context.Context, ptr, length uint32) error {
	if i.mod == nil {
		return errors.Closed("instance")
	}
	i.stack[0] = uint64(ptr)
	i.stack[1] = uint64(length)
	if err := i.releaseFn.CallWithStack(ctx, i.stack[:2]); err != nil {
		i.broken = true
		return err
	}
	return nil
}

// Broken reports whether a guest call on this instance has failed. Linear
// memory may be inconsistent afterwards, so the instance should be closed.
func (i *Instance) Broken() bool {
	return i.broken
}

// ExportedGlobal returns a global exported by the renderer, or nil.
func (i *Instance) ExportedGlobal(name string) api.Global {
	if i.mod == nil {
		return nil
	}
	return i.mod.ExportedGlobal(name)
}

func (i *Instance) Close(ctx context.Context) error {
	if i.mod == nil {
		return nil
	}
	err := i.mod.Close(ctx)
	i.mod = nil
	i.renderFn = nil
	i.releaseFn = nil
	i.alloc.allocFn = nil
	i.alloc.freeFn = nil
	return err
}

// allocator implements svgpng.Allocator using the renderer's exports
type allocator struct {
	inst      *Instance
	allocFn   api.Function
	freeFn    api.Function
	stack     []uint64
	allocArgs int
	freeArgs  int
}

func (a *allocator) Alloc(size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.Closed("instance")
	}

	ctx := context.Background()
	var err error
	if a.allocArgs == 1 {
		a.stack[0] = uint64(size)
		err = a.allocFn.CallWithStack(ctx, a.stack[:1])
	} else {
		a.stack[0] = 0
		a.stack[1] = 0
		a.stack[2] = uint64(align)
		a.stack[3] = uint64(size)
		err = a.allocFn.CallWithStack(ctx, a.stack[:4])
	}
	if err != nil {
		a.inst.broken = true
		return 0, err
	}
	return uint32(a.stack[0]), nil
}

func (a *allocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}

	ctx := context.Background()
	var err error
	switch {
	case a.freeFn != nil:
		a.stack[0] = uint64(ptr)
		a.stack[1] = uint64(size)
		a.stack[2] = uint64(align)
		err = a.freeFn.CallWithStack(ctx, a.stack[:max(a.freeArgs, 1)])
	case a.allocFn != nil && a.allocArgs == 4:
		a.stack[0] = uint64(ptr)
		a.stack[1] = uint64(size)
		a.stack[2] = uint64(align)
		a.stack[3] = 0
		err = a.allocFn.CallWithStack(ctx, a.stack[:4])
	default:
		return
	}
	if err != nil {
		a.inst.broken = true
		Logger().Warn("Free: failed to release scratch buffer",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

var _ svgpng.Allocator = (*allocator)(nil)
