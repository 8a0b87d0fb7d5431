// Package kernels implements the GPU kernel library: a registry of shader
// variants per operation and a capability-driven variant selector
// (spec.md §4.2).
package kernels

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"

	"github.com/dopplerml/doppler/gpu"
)

// Operation names one of the kernel families in spec.md §3/§4.2.
type Operation string

const (
	OpMatmul          Operation = "matmul"
	OpAttention       Operation = "attention"
	OpRMSNorm         Operation = "rmsnorm"
	OpDequant         Operation = "dequant"
	OpSoftmax         Operation = "softmax"
	OpGather          Operation = "gather"
	OpResidual        Operation = "residual"
	OpActivation      Operation = "activation"
	OpSample          Operation = "sample"
	OpRope            Operation = "rope"
	OpScatterAdd      Operation = "scatter_add"
	OpFusedMatmulNorm Operation = "fused_matmul_rmsnorm"
	OpFusedFFN        Operation = "fused_ffn"
)

// BindingKind is the resource type bound at one binding index, mirroring
// the teacher's gpucore.BindingType enum.
type BindingKind int

const (
	BindingUniform BindingKind = iota
	BindingStorage
	BindingReadOnlyStorage
)

// BindingDescriptor describes one binding slot in a variant's bind group.
type BindingDescriptor struct {
	Binding        uint32
	Kind           BindingKind
	MinBindingSize uint64
}

// CapabilityRequirement is a predicate over gpu.Capabilities that a
// variant needs satisfied to be dispatchable.
type CapabilityRequirement struct {
	RequireF16       bool
	RequireSubgroups bool
}

// Satisfied reports whether caps meets this requirement.
func (r CapabilityRequirement) Satisfied(caps gpu.Capabilities) bool {
	if r.RequireF16 && !caps.HasF16 {
		return false
	}
	if r.RequireSubgroups && !caps.HasSubgroups {
		return false
	}
	return true
}

// Variant is one shader implementation of an Operation (spec.md §3
// "Kernel registry entry").
type Variant struct {
	Operation         Operation
	Name              string
	Source            string // WGSL source
	EntryPoint        string
	WorkgroupSize     [3]uint32
	Required          CapabilityRequirement
	Bindings          []BindingDescriptor
	SharedMemoryBytes uint32
}

// entry is the static per-operation registration: every variant, keyed
// by name. Each variant carries its own bindings and workgroup size.
type entry struct {
	variants map[string]Variant
}

// cacheKey identifies one compiled pipeline by (operation, variant).
type cacheKey struct {
	op      Operation
	variant string
}

// compiled holds the pipeline objects produced for one cache entry, plus
// the resources that must be torn down alongside it.
type compiled struct {
	shaderModule   hal.ShaderModule
	bindGroupLayout hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline
	variant        Variant
}

// pipelineFuture is the cooperative-await handle spec.md §4.2 describes:
// "cache hits are synchronous, misses are cooperative (return a pending
// value the caller awaits before dispatching)".
type pipelineFuture struct {
	ready chan struct{}
	val   *compiled
	err   error
}

// Await blocks until the pipeline is compiled or ctx is cancelled.
func (f *pipelineFuture) Await(ctx context.Context) (*compiled, error) {
	select {
	case <-f.ready:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Registry is the static table of kernel variants keyed by operation,
// plus the lazily-populated, device-bound pipeline cache.
//
// Grounded on the teacher's HALPipelineCache (backend/native/hal_pipeline_cache.go):
// same hash-indexed compute-pipeline cache with hit/miss counters,
// generalized from a single render-pipeline hash to (operation, variant)
// keys, and extended with naga-based WGSL validation at first-compile
// time (internal/native/shader_helper.go's CompileShaderToSPIRV).
type Registry struct {
	device *gpu.Device

	static map[Operation]entry

	mu      sync.Mutex
	cache   map[cacheKey]*pipelineFuture
	hits    uint64
	misses  uint64
}

// New builds a Registry over every statically declared operation's
// variant table (see register_*.go for each operation's variants).
func New(device *gpu.Device) *Registry {
	r := &Registry{
		device: device,
		static: make(map[Operation]entry),
		cache:  make(map[cacheKey]*pipelineFuture),
	}
	registerAll(r)
	return r
}

// register adds one operation's variant table. Called once per
// operation during New via registerAll.
func (r *Registry) register(op Operation, variants ...Variant) {
	m := make(map[string]Variant, len(variants))
	for _, v := range variants {
		v.Operation = op
		m[v.Name] = v
	}
	r.static[op] = entry{variants: m}
}

// Variants returns the variant table for op, for use by selectors and by
// the variant-selector test grid (spec.md §8).
func (r *Registry) Variants(op Operation) map[string]Variant {
	return r.static[op].variants
}

// Lookup returns the declared Variant for (op, name), or false if no
// such variant is registered.
func (r *Registry) Lookup(op Operation, name string) (Variant, bool) {
	v, ok := r.static[op].variants[name]
	return v, ok
}

// GetPipeline returns the compiled pipeline for (op, variant), compiling
// and caching it on first use. A cache hit returns synchronously; a
// cache miss compiles inline and the returned future is already
// resolved by the time GetPipeline returns, but callers still Await it
// so cooperative callers that pass a cancellable ctx observe
// cancellation consistently at this suspension point (spec.md §5).
func (r *Registry) GetPipeline(ctx context.Context, op Operation, variantName string) (hal.ComputePipeline, error) {
	c, err := r.getCompiled(ctx, op, variantName)
	if err != nil {
		return nil, err
	}
	return c.pipeline, nil
}

// GetBindGroupLayout returns the bind group layout a dispatch site needs
// to build a hal.BindGroup for (op, variantName), compiling the variant
// first if necessary. Callers build one bind group per dispatch from
// this layout and the tensors/uniforms the variant's Bindings describe.
func (r *Registry) GetBindGroupLayout(ctx context.Context, op Operation, variantName string) (hal.BindGroupLayout, error) {
	c, err := r.getCompiled(ctx, op, variantName)
	if err != nil {
		return nil, err
	}
	return c.bindGroupLayout, nil
}

func (r *Registry) getCompiled(ctx context.Context, op Operation, variantName string) (*compiled, error) {
	variant, ok := r.Lookup(op, variantName)
	if !ok {
		return nil, gpu.NewConfigError("kernels: no variant %q registered for operation %q", variantName, op)
	}
	if !variant.Required.Satisfied(r.device.Capabilities()) {
		return nil, fmt.Errorf("%w: variant %q requires unmet capabilities", gpu.ErrUnsupportedCapability, variantName)
	}

	key := cacheKey{op: op, variant: variantName}

	r.mu.Lock()
	if f, ok := r.cache[key]; ok {
		r.hits++
		r.mu.Unlock()
		return f.Await(ctx)
	}
	r.misses++
	r.mu.Unlock()

	c, err := r.compile(variant)
	future := &pipelineFuture{ready: make(chan struct{}), val: c, err: err}
	close(future.ready)

	r.mu.Lock()
	r.cache[key] = future
	r.mu.Unlock()

	return future.Await(ctx)
}

// Stats returns (hits, misses) for diagnostics.
func (r *Registry) Stats() (hits, misses uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.misses
}

func (r *Registry) compile(v Variant) (*compiled, error) {
	spirvBytes, err := naga.Compile(v.Source)
	if err != nil {
		return nil, gpu.NewCompilationError(v.Name, err)
	}
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	module, err := r.device.HAL().CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  v.Name,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, gpu.NewCompilationError(v.Name, err)
	}

	entries := make([]types.BindGroupLayoutEntry, len(v.Bindings))
	for i, b := range v.Bindings {
		e := types.BindGroupLayoutEntry{Binding: b.Binding, Visibility: types.ShaderStageCompute}
		switch b.Kind {
		case BindingUniform:
			e.Buffer = &types.BufferBindingLayout{Type: types.BufferBindingTypeUniform, MinBindingSize: b.MinBindingSize}
		case BindingStorage:
			e.Buffer = &types.BufferBindingLayout{Type: types.BufferBindingTypeStorage, MinBindingSize: b.MinBindingSize}
		case BindingReadOnlyStorage:
			e.Buffer = &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage, MinBindingSize: b.MinBindingSize}
		}
		entries[i] = e
	}

	bgLayout, err := r.device.HAL().CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   v.Name + "_layout",
		Entries: entries,
	})
	if err != nil {
		return nil, gpu.NewCompilationError(v.Name, err)
	}

	pLayout, err := r.device.HAL().CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            v.Name + "_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		return nil, gpu.NewCompilationError(v.Name, err)
	}

	pipeline, err := r.device.HAL().CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  v.Name,
		Layout: pLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: v.EntryPoint,
		},
	})
	if err != nil {
		return nil, gpu.NewCompilationError(v.Name, err)
	}

	return &compiled{
		shaderModule:    module,
		bindGroupLayout: bgLayout,
		pipelineLayout:  pLayout,
		pipeline:        pipeline,
		variant:         v,
	}, nil
}

// Close destroys every compiled pipeline and its layouts/shader modules.
// Call once at device teardown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.cache {
		select {
		case <-f.ready:
		default:
			continue
		}
		if f.val == nil {
			continue
		}
		d := r.device.HAL()
		d.DestroyComputePipeline(f.val.pipeline)
		d.DestroyPipelineLayout(f.val.pipelineLayout)
		d.DestroyBindGroupLayout(f.val.bindGroupLayout)
		d.DestroyShaderModule(f.val.shaderModule)
	}
	r.cache = make(map[cacheKey]*pipelineFuture)
}
