package gpu

import "sync"

// dtypeEntry records the authoritative dtype and layout of a buffer that
// has not yet been wrapped as a Tensor (e.g. immediately after a weight
// upload, before the loader constructs the Tensor view).
type dtypeEntry struct {
	dtype       Dtype
	columnMajor bool
}

// DtypeRegistry is a process-wide map from buffer identity to its
// authoritative dtype, kept only as a bridge for code that must look up
// a buffer's dtype before a Tensor wrapper exists. Most call sites should
// prefer threading a Tensor through directly (spec.md §9 Design Note);
// this registry exists for the minority of cases — notably the weight
// loader collaborator (§6) — that upload raw buffers ahead of wrapping.
type DtypeRegistry struct {
	mu      sync.RWMutex
	entries map[*Buffer]dtypeEntry
}

// NewDtypeRegistry creates an empty registry.
func NewDtypeRegistry() *DtypeRegistry {
	return &DtypeRegistry{entries: make(map[*Buffer]dtypeEntry)}
}

// Set records dtype and layout for buf, overwriting any prior entry.
// Called on kernel completion per spec.md §4.1.
func (r *DtypeRegistry) Set(buf *Buffer, dtype Dtype, columnMajor bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[buf] = dtypeEntry{dtype: dtype, columnMajor: columnMajor}
}

// Lookup returns the recorded dtype/layout for buf, if any.
func (r *DtypeRegistry) Lookup(buf *Buffer) (dtype Dtype, columnMajor bool, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[buf]
	return e.dtype, e.columnMajor, ok
}

// Clear removes buf's entry. Called on buffer release per spec.md §4.1.
func (r *DtypeRegistry) Clear(buf *Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, buf)
}
