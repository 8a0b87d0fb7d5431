package pipeline

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
	"github.com/dopplerml/doppler/quant"
)

// ceilDivU32 returns ceil(n/d) as a uint32 workgroup count.
func ceilDivU32(n, d int64) uint32 {
	if d <= 0 {
		return 1
	}
	c := (n + d - 1) / d
	if c < 1 {
		c = 1
	}
	return uint32(c)
}

// float32Bits re-encodes f as the uint32 bit pattern the WGSL shaders
// expect where a uniform struct packs a float into a u32 field (every
// Dims struct in kernels/shaders does this so the struct stays
// all-u32 and trivially alignable).
func float32Bits(f float64) uint32 {
	return math.Float32bits(float32(f))
}

// bufferBinding builds a gputypes.BufferBinding over a byte range of
// buf, letting a single large buffer (e.g. a KV cache) serve multiple
// dispatches at different offsets without a copy.
func bufferBinding(buf *gpu.Buffer, offset, size int64) gputypes.BufferBinding {
	return gputypes.BufferBinding{Buffer: buf.Raw(), Offset: uint64(offset), Size: uint64(size)}
}

// binding is one resolved (binding index -> buffer range) pair used to
// build a bind group for one dispatch.
type binding struct {
	index  uint32
	buffer *gpu.Buffer
	offset int64
	size   int64
}

// buf is a convenience constructor binding the whole buffer.
func buf(index uint32, b *gpu.Buffer) binding {
	return binding{index: index, buffer: b, offset: 0, size: b.Size()}
}

// bufAt binds a byte range of b.
func bufAt(index uint32, b *gpu.Buffer, offset, size int64) binding {
	return binding{index: index, buffer: b, offset: offset, size: size}
}

// runtime bundles the per-forward-pass handles every dispatch helper
// needs: the device, kernel registry, buffer pool, and the single
// recorder the whole forward pass shares (spec.md §4.4 "every forward
// pass is recorded into a single command recorder").
type runtime struct {
	device   *gpu.Device
	registry *kernels.Registry
	pool     *gpu.BufferPool
	uniforms *gpu.UniformCache
	rec      *gpu.Recorder
	policy   quant.FusedMatmulPolicy // manifest kernel hints, spec.md §6
}

// dispatch compiles (if needed) the named variant, builds a bind group
// from bindings, and records one dispatch into rt.rec.
func (rt *runtime) dispatch(ctx context.Context, op kernels.Operation, variant string, label string, wg gpu.DispatchWorkgroups, bindings []binding) error {
	pipeline, err := rt.registry.GetPipeline(ctx, op, variant)
	if err != nil {
		return fmt.Errorf("pipeline: %s/%s: %w", op, variant, err)
	}
	layout, err := rt.registry.GetBindGroupLayout(ctx, op, variant)
	if err != nil {
		return fmt.Errorf("pipeline: %s/%s: %w", op, variant, err)
	}

	entries := make([]gputypes.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		entries[i] = gputypes.BindGroupEntry{
			Binding:  b.index,
			Resource: bufferBinding(b.buffer, b.offset, b.size),
		}
	}

	bg, err := rt.device.HAL().CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("pipeline: %s/%s: create bind group: %w", op, variant, err)
	}

	return rt.rec.Dispatch(gpu.Dispatch{
		Pipeline:   pipeline,
		BindGroups: map[uint32]hal.BindGroup{0: bg},
		Workgroups: wg,
		Label:      label,
	})
}

// writeUniform allocates and uploads a small uniform buffer tracked by
// rt.rec, writing words as little-endian u32s in field order matching
// the corresponding WGSL Dims struct.
func (rt *runtime) writeUniform(label string, words ...uint32) (*gpu.Buffer, error) {
	size := int64(len(words) * 4)
	return rt.uniforms.WriteUniforms(rt.rec, size, func(dst []byte) {
		for i, w := range words {
			binary.LittleEndian.PutUint32(dst[i*4:i*4+4], w)
		}
	})
}

// uploadStorage acquires a pooled read-only storage buffer, uploads
// data into it, and tracks it against rt.rec.
func (rt *runtime) uploadStorage(label string, data []byte) (*gpu.Buffer, error) {
	usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	b, err := rt.pool.Acquire(int64(len(data)), usage, label)
	if err != nil {
		return nil, fmt.Errorf("pipeline: upload %s: %w", label, err)
	}
	rt.device.Queue().WriteBuffer(b.Raw(), 0, data)
	rt.rec.TrackTemporary(b)
	return b, nil
}

// allocActivation acquires a pooled storage buffer sized for count
// elements of dtype, for a transient activation tensor, and tracks it
// against rt.rec so it is released once the forward pass completes.
func (rt *runtime) allocActivation(label string, count int64, dtype gpu.Dtype) (*gpu.Tensor, error) {
	size := gpu.AlignUp(count * int64(dtype.BytesPerElement()))
	usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	b, err := rt.pool.Acquire(size, usage, label)
	if err != nil {
		return nil, fmt.Errorf("pipeline: alloc %s: %w", label, err)
	}
	rt.rec.TrackTemporary(b)
	return &gpu.Tensor{Buffer: b, Dtype: dtype, Shape: gpu.Shape{int(count)}, Label: label}, nil
}
