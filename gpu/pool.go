package gpu

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
)

// PoolStats mirrors the {hit_rate, allocations_total, reuses_total}
// contract in spec.md §4.1, in the same shape as the teacher's
// MemoryStats (internal/gpu/memory.go).
type PoolStats struct {
	AllocationsTotal uint64
	ReusesTotal      uint64
	EvictionsTotal   uint64
	HitRate          float64
}

// bucketEntry tracks one free buffer within a size bucket's LRU list.
type bucketEntry struct {
	buf     *Buffer
	element *list.Element
}

// bucket holds the free buffers of one size class in LRU order. Buffers
// in use are not tracked here.
type bucket struct {
	size     int64
	free     *list.List // front = most recently released
	byBuffer map[*Buffer]*list.Element
	lruCap   int
}

// PoolConfig configures BufferPool eviction behavior.
type PoolConfig struct {
	// LRUCapPerBucket bounds how many free buffers a size bucket retains
	// before the least-recently-released buffer is destroyed. 0 means
	// unbounded (no eviction).
	LRUCapPerBucket int

	// Granularity, when > 0, buckets by multiples of this size instead
	// of next-power-of-two.
	Granularity int64

	Logger *slog.Logger
}

// BufferPool owns every GPU buffer the runtime allocates for transient
// tensors (activations, QKV projections, FFN intermediates). Tensors
// hold non-owning references; the pool is the sole owner (spec.md §3).
//
// Grounded on the teacher's MemoryManager (internal/gpu/memory.go):
// same LRU-list-per-class eviction shape, generalized from "one global
// LRU over textures" to "one LRU per size bucket" per spec.md §4.1's
// "size buckets by next-power-of-two" contract.
type BufferPool struct {
	mu sync.Mutex

	device  *Device
	cfg     PoolConfig
	buckets map[int64]*bucket

	allocations uint64
	reuses      uint64
	evictions   uint64

	dtypes *DtypeRegistry
	log    *slog.Logger
}

// NewBufferPool creates a pool bound to device, using the registry to
// clear dtype metadata on release.
func NewBufferPool(device *Device, dtypes *DtypeRegistry, cfg PoolConfig) *BufferPool {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &BufferPool{
		device:  device,
		cfg:     cfg,
		buckets: make(map[int64]*bucket),
		dtypes:  dtypes,
		log:     log,
	}
}

// bucketSize computes the size class a requested byte count falls into:
// next-power-of-two above the storage-aligned size, or a multiple of
// cfg.Granularity when configured.
func (p *BufferPool) bucketSize(size int64) int64 {
	aligned := AlignUp(size)
	if p.cfg.Granularity > 0 {
		g := p.cfg.Granularity
		return ((aligned + g - 1) / g) * g
	}
	n := int64(StorageAlignment)
	for n < aligned {
		n <<= 1
	}
	return n
}

// Acquire returns a buffer whose byte length is at least size (rounded
// to the storage alignment) and whose usage flags are a superset of
// usage, per the pool contract in spec.md §4.1. It reuses a free buffer
// from the matching bucket if one with compatible usage exists,
// otherwise allocates a fresh one.
func (p *BufferPool) Acquire(size int64, usage gputypes.BufferUsage, label string) (*Buffer, error) {
	if err := p.device.checkLost(); err != nil {
		return nil, err
	}
	bsize := p.bucketSize(size)

	p.mu.Lock()
	b, ok := p.buckets[bsize]
	if !ok {
		b = &bucket{size: bsize, free: list.New(), byBuffer: make(map[*Buffer]*list.Element), lruCap: p.cfg.LRUCapPerBucket}
		p.buckets[bsize] = b
	}

	for e := b.free.Front(); e != nil; e = e.Next() {
		be := e.Value.(*bucketEntry)
		if be.buf.Usage()&usage == usage {
			b.free.Remove(e)
			delete(b.byBuffer, be.buf)
			be.buf.setState(BufferInUse)
			be.buf.setLabel(label)
			be.buf.mu.Lock()
			be.buf.generation++
			be.buf.mu.Unlock()
			p.reuses++
			p.mu.Unlock()
			p.log.Debug("gpu: pool reuse", "bucket", bsize, "label", label)
			return be.buf, nil
		}
	}
	p.mu.Unlock()

	buf, err := createBuffer(p.device.HAL(), bsize, usage, label)
	if err != nil {
		return nil, err
	}
	buf.setState(BufferInUse)
	buf.mu.Lock()
	buf.bucket = bsize
	buf.mu.Unlock()

	p.mu.Lock()
	p.allocations++
	p.mu.Unlock()
	p.log.Debug("gpu: pool alloc", "bucket", bsize, "label", label)
	return buf, nil
}

// Release returns buf to its size bucket's free list, evicting the
// least-recently-released buffer if the bucket's LRU cap is exceeded.
func (p *BufferPool) Release(buf *Buffer) {
	if buf == nil {
		return
	}
	if p.dtypes != nil {
		p.dtypes.Clear(buf)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	buf.mu.Lock()
	bsize := buf.bucket
	buf.mu.Unlock()

	b, ok := p.buckets[bsize]
	if !ok {
		b = &bucket{size: bsize, free: list.New(), byBuffer: make(map[*Buffer]*list.Element), lruCap: p.cfg.LRUCapPerBucket}
		p.buckets[bsize] = b
	}

	buf.setState(BufferFree)
	e := b.free.PushFront(&bucketEntry{buf: buf})
	b.byBuffer[buf] = e

	if b.lruCap > 0 {
		for b.free.Len() > b.lruCap {
			back := b.free.Back()
			be := back.Value.(*bucketEntry)
			b.free.Remove(back)
			delete(b.byBuffer, be.buf)
			be.buf.destroy()
			p.evictions++
		}
	}
}

// Stats returns the pool's hit-rate and allocation/reuse counters.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.allocations + p.reuses
	var hitRate float64
	if total > 0 {
		hitRate = float64(p.reuses) / float64(total)
	}
	return PoolStats{
		AllocationsTotal: p.allocations,
		ReusesTotal:      p.reuses,
		EvictionsTotal:   p.evictions,
		HitRate:          hitRate,
	}
}

// String renders a human-readable diagnostics line, mirroring the
// teacher's MemoryStats.String().
func (s PoolStats) String() string {
	return fmt.Sprintf("Pool[%.1f%% hit, %d allocs, %d reuses, %d evictions]",
		s.HitRate*100, s.AllocationsTotal, s.ReusesTotal, s.EvictionsTotal)
}
