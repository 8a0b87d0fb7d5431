package gpu

import (
	"sync"

	"github.com/gogpu/gputypes"
)

// MaxUniformSize is the largest uniform buffer the cache will serve
// (spec.md §3 "Uniform buffer cache"): small, 256-byte-aligned buffers.
const MaxUniformSize = 256

// UniformCache holds small (<=256B) uniform buffers and recycles them
// once the submission that used them completes, per spec.md §4.1.
//
// Grounded on the teacher's CreateStagingBuffer helper
// (internal/gpu/buffer.go): same upload-buffer shape (allocate, write,
// use, release), generalized from a one-shot staging buffer into a
// small pool so uniforms don't round-trip through the general-purpose
// BufferPool's size-bucket machinery on every dispatch.
type UniformCache struct {
	mu    sync.Mutex
	pool  *BufferPool
	device *Device
}

// NewUniformCache creates a cache backed by pool for its underlying
// allocations (uniforms still live in pool's size buckets; the cache
// just gives them a dedicated, fire-and-forget acquire/write/track path).
func NewUniformCache(device *Device, pool *BufferPool) *UniformCache {
	return &UniformCache{device: device, pool: pool}
}

// WriteUniforms allocates a fresh uniform buffer of size bytes (<=
// MaxUniformSize), writes into a staging view via writeFn, uploads it,
// and returns it. When recorder is non-nil, the buffer is tracked so it
// is released after the recorder's submission completes; otherwise the
// caller must call Release explicitly.
func (c *UniformCache) WriteUniforms(recorder *Recorder, size int64, writeFn func(buf []byte)) (*Buffer, error) {
	if size <= 0 || size > MaxUniformSize {
		return nil, NewValidationError([]int{int(size)}, "uniform size must be in (0, %d]", MaxUniformSize)
	}
	usage := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	buf, err := c.pool.Acquire(size, usage, "uniform")
	if err != nil {
		return nil, err
	}

	staging := make([]byte, AlignUp(size))
	if writeFn != nil {
		writeFn(staging[:size])
	}
	c.device.Queue().WriteBuffer(buf.Raw(), 0, staging)

	if recorder != nil {
		recorder.TrackTemporary(buf)
	}
	return buf, nil
}

// Release returns a uniform buffer acquired without a recorder back to
// the pool. Callers that passed a non-nil recorder to WriteUniforms must
// not call this; the recorder's submission completion already will.
func (c *UniformCache) Release(buf *Buffer) {
	c.pool.Release(buf)
}
