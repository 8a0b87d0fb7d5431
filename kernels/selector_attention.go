package kernels

import "github.com/dopplerml/doppler/gpu"

// DecodeSubgroupHeadDimThreshold is the head_dim crossover between the
// decode_chunked and decode_subgroup variants when subgroups are
// available (DESIGN.md Open Question decision #2): below the
// threshold, per-invocation work is too small to amortize subgroup
// reduction overhead, so decode_chunked wins; at or above it,
// decode_subgroup wins. Exposed as a var so a target can override the
// measured crossover without touching selector logic.
var DecodeSubgroupHeadDimThreshold = 128

// AttentionContext is the call-site record for the attention selector
// (spec.md §4.2 "Attention").
type AttentionContext struct {
	SeqLen            int
	KVLen             int
	NumHeads          int
	HeadDim           int
	KVDtype           gpu.Dtype
	SharedMemoryLimit int
	Caps              gpu.Capabilities
}

const prefillTiledLargeSharedMemory = 49152

// SelectAttention picks an attention variant name per spec.md §4.2
// "Attention".
func SelectAttention(c AttentionContext) string {
	f16kv := c.KVDtype == gpu.DtypeF16

	if c.SeqLen == 1 {
		if c.Caps.HasSubgroups {
			if c.HeadDim >= DecodeSubgroupHeadDimThreshold {
				return "decode_subgroup"
			}
			return withF16KVSuffix("decode_chunked", f16kv)
		}
		if c.HeadDim <= 256 && c.KVLen <= 2048 {
			return withF16KVSuffix("decode_chunked", f16kv)
		}
		if c.HeadDim <= 64 {
			return withF16KVSuffix("decode_small", f16kv)
		}
		if c.KVLen > 8192 {
			return withF16KVSuffix("decode_streaming", f16kv)
		}
		return withF16KVSuffix("decode", f16kv)
	}

	// Prefill.
	if c.HeadDim <= 64 && c.SharedMemoryLimit >= prefillTiledLargeSharedMemory {
		return "prefill"
	}
	tileBytes := c.HeadDim * 4
	if f16kv {
		tileBytes = c.HeadDim * 2
	}
	if c.SharedMemoryLimit >= tileBytes {
		return "prefill_small"
	}
	return "prefill_streaming"
}

// withF16KVSuffix appends _f16kv to a base variant name when the KV
// cache dtype is f16. Only decode, decode_streaming and decode_chunked
// have an _f16kv sibling; every other base (decode_small included) is
// returned unchanged.
func withF16KVSuffix(base string, f16kv bool) string {
	if !f16kv {
		return base
	}
	switch base {
	case "decode_chunked", "decode", "decode_streaming":
		return base + "_f16kv"
	default:
		return base
	}
}
