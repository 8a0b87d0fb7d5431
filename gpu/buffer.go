package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BufferState is the pool-tracking state of a Buffer (spec.md §3 "Buffer
// pool entry"): free, in-use, or tracked-by-recorder.
type BufferState int

const (
	BufferFree BufferState = iota
	BufferInUse
	BufferTrackedByRecorder
)

func (s BufferState) String() string {
	switch s {
	case BufferFree:
		return "free"
	case BufferInUse:
		return "in-use"
	case BufferTrackedByRecorder:
		return "tracked-by-recorder"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Buffer is a GPU buffer handle, exclusively owned by a BufferPool.
// Tensors (gpu.Tensor) hold non-owning references to a Buffer.
//
// Modeled on the teacher's internal/gpu/buffer.go Buffer wrapper, pared
// down to what the inference runtime needs: no async CPU-side mapping
// state machine, since weight upload and token readback are the only
// host<->device transfers, and token readback is handled by
// Device.ReadBuffer's staging copy (see readback.go).
type Buffer struct {
	mu sync.RWMutex

	halBuffer hal.Buffer
	size      int64
	usage     gputypes.BufferUsage
	label     string

	bucket int64 // size-bucket this buffer belongs to in its pool
	state  BufferState
	label_ string // acquired-for label, set on Acquire

	generation uint64 // allocation generation, bumped on reuse from the pool
}

// Raw returns the underlying hal.Buffer for kernel binding.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.halBuffer
}

// Size returns the buffer's byte length.
func (b *Buffer) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Usage returns the buffer's usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage
}

// Label returns the buffer's most recent acquired-for label.
func (b *Buffer) Label() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.label_
}

// State returns the buffer's pool-tracking state.
func (b *Buffer) State() BufferState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Generation returns the allocation generation this buffer was last
// acquired under; used by callers that must detect stale references
// across a pool-recycle boundary.
func (b *Buffer) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generation
}

func (b *Buffer) setState(s BufferState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Buffer) setLabel(label string) {
	b.mu.Lock()
	b.label_ = label
	b.mu.Unlock()
}

// createBuffer allocates a new hal.Buffer of at least size bytes with
// the given usage flags, rounded up to the storage alignment, per the
// pool contract in spec.md §4.1.
func createBuffer(d hal.Device, size int64, usage gputypes.BufferUsage, label string) (*Buffer, error) {
	if d == nil {
		return nil, ErrNoAdapter
	}
	if size <= 0 {
		return nil, NewValidationError([]int{int(size)}, "buffer size must be positive")
	}
	aligned := AlignUp(size)

	halDesc := &hal.BufferDescriptor{
		Label: label,
		Size:  uint64(aligned),
		Usage: usage,
	}
	halBuf, err := d.CreateBuffer(halDesc)
	if err != nil {
		return nil, fmt.Errorf("gpu: buffer creation failed: %w", err)
	}

	return &Buffer{
		halBuffer: halBuf,
		size:      aligned,
		usage:     usage,
		label_:    label,
	}, nil
}

// destroy releases the underlying hal.Buffer. Only the pool calls this,
// when evicting an entry; ordinary Release calls return the buffer to
// its bucket instead.
func (b *Buffer) destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.halBuffer != nil {
		b.halBuffer.Destroy()
		b.halBuffer = nil
	}
}
