package pipeline

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/model"
)

// layerCache holds one layer's K and V buffers, each sized for the
// model's max sequence length, row-major [position, num_kv_heads *
// head_dim] per spec.md §6 "KV-cache on-wire layout".
//
// Sliding-window layers use the same full-length buffer as full
// attention layers rather than a physically wrapping ring: the window
// is enforced by restricting the attention read range (see ReadWindow),
// which reproduces spec.md §8 scenario 3's observable behavior without
// the bookkeeping a true ring buffer needs for wraparound writes that
// straddle the buffer end.
type layerCache struct {
	k, v *gpu.Buffer
}

// KVCache owns the per-layer K/V buffers for one in-flight sequence and
// tracks the write position each layer has advanced to.
type KVCache struct {
	layers    []layerCache
	writePos  int // positions written so far, common to every layer in one sequence
	rowBytes  int64
	dtype     gpu.Dtype
	maxSeqLen int
}

// NewKVCache allocates K/V buffers for every layer of m, sized for
// m.Arch.MaxSeqLen positions, using dtype (f16 or f32) for storage.
func NewKVCache(pool *gpu.BufferPool, m *model.Model, dtype gpu.Dtype) (*KVCache, error) {
	rowElems := int64(m.Arch.NumKVHeads * m.Arch.HeadDim)
	rowBytes := rowElems * int64(dtype.BytesPerElement())
	bufSize := gpu.AlignUp(rowBytes * int64(m.Arch.MaxSeqLen))
	usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc

	layers := make([]layerCache, m.Arch.NumLayers)
	for i := range layers {
		k, err := pool.Acquire(bufSize, usage, fmt.Sprintf("kv_cache_k_%d", i))
		if err != nil {
			return nil, fmt.Errorf("pipeline: kv cache layer %d: %w", i, err)
		}
		v, err := pool.Acquire(bufSize, usage, fmt.Sprintf("kv_cache_v_%d", i))
		if err != nil {
			return nil, fmt.Errorf("pipeline: kv cache layer %d: %w", i, err)
		}
		layers[i] = layerCache{k: k, v: v}
	}

	return &KVCache{
		layers:    layers,
		rowBytes:  rowBytes,
		dtype:     dtype,
		maxSeqLen: m.Arch.MaxSeqLen,
	}, nil
}

// WritePos returns the number of positions written so far.
func (c *KVCache) WritePos() int { return c.writePos }

// WriteRange returns the byte offset and length for writing numTokens
// new K/V rows starting at the cache's current write position, without
// advancing it. attention.go copies the projected K/V rows into this
// range with copyIntoCache (spec.md §4.4 step 3 "write K and V into the
// KV cache").
func (c *KVCache) WriteRange(numTokens int) (offset, size int64, err error) {
	if c.writePos+numTokens > c.maxSeqLen {
		return 0, 0, fmt.Errorf("pipeline: kv cache overflow: write_pos=%d + %d > max_seq_len=%d", c.writePos, numTokens, c.maxSeqLen)
	}
	offset = int64(c.writePos) * c.rowBytes
	size = int64(numTokens) * c.rowBytes
	return offset, size, nil
}

// Advance moves the write position forward by numTokens, after the
// corresponding dispatches have been recorded.
func (c *KVCache) Advance(numTokens int) { c.writePos += numTokens }

// ReadWindow computes the [start, len) position range attention should
// read for a layer of the given type, enforcing slidingWindow when the
// layer type is SlidingAttention and slidingWindow > 0 (spec.md §8
// scenario 3). A non-sliding layer always reads [0, writePos).
func (c *KVCache) ReadWindow(layerType model.LayerType, slidingWindow int) (start, length int) {
	if layerType != model.SlidingAttention || slidingWindow <= 0 {
		return 0, c.writePos
	}
	if c.writePos <= slidingWindow {
		return 0, c.writePos
	}
	return c.writePos - slidingWindow, slidingWindow
}

// Layer returns layer ℓ's K and V buffers.
func (c *KVCache) Layer(l int) (k, v *gpu.Buffer) {
	return c.layers[l].k, c.layers[l].v
}

// Release returns every layer's K/V buffers to the pool.
func (c *KVCache) Release(pool *gpu.BufferPool) {
	for _, l := range c.layers {
		pool.Release(l.k)
		pool.Release(l.v)
	}
}
