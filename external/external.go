// Package external declares the collaborator contracts spec.md §6
// names but puts outside this module's scope: tokenizer, model
// manifest, weight loader, and expert loader. Only interfaces and the
// plain data they exchange live here — every implementation (a BPE
// tokenizer, a GGUF reader, an IndexedDB-backed shard fetcher, ...) is
// a separate concern the host wires in, the same way gpu.AcquireDevice
// takes a gpucontext.DeviceProvider rather than owning device creation.
package external

import (
	"context"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/model"
)

// SpecialTokens names the token ids a tokenizer reserves (spec.md §6
// "Tokenizer").
type SpecialTokens struct {
	Pad int32
	BOS int32
	EOS int32
	UNK int32
}

// Tokenizer turns text into the model's token-id space and back. The
// pipeline only ever needs the id space and the stop-token set; every
// other tokenizer detail (merges, vocab file format, byte-fallback
// table) is this collaborator's own business.
type Tokenizer interface {
	Encode(text string) ([]int32, error)
	Decode(ids []int32, skipSpecial, trim bool) (string, error)
	SpecialTokens() SpecialTokens
}

// TensorSpec is one declared tensor's dtype, shape, and shard location
// as a model manifest describes it (spec.md §6 "Model manifest": "declares
// ... per-tensor dtype and shape, sharded weight layout on disk").
type TensorSpec struct {
	Name       string
	Dtype      gpu.Dtype
	Shape      gpu.Shape
	ShardIndex int
	ByteOffset int64
	ByteLength int64
}

// ModelManifest declares everything needed to load a model without
// this package knowing the on-disk container format (spec.md §6
// "Model manifest"): architecture parameters, quantization, per-tensor
// layout, and which tokenizer to pair it with.
type ModelManifest interface {
	Arch() model.Arch
	Tensors() []TensorSpec
	TokenizerRef() string
	Quantization() string
}

// WeightHandle is one uploaded weight tensor plus the layer/module path
// the loader read it from, for a caller assembling a model.LayerWeights
// from loader output.
type WeightHandle struct {
	Layer  int    // -1 for non-layer tensors (embeddings, final norm, LM head)
	Module string // e.g. "q_proj", "gate_proj", "router", "lora_a"
	Tensor *gpu.Tensor
}

// WeightLoader reads weight shards on demand and uploads them to
// device-resident tensors (spec.md §6 "Weight loader"): "reads shards
// on demand, applies column-major/row-major layout as declared,
// populates the buffer-dtype registry on upload, and returns weight
// handles organized by layer and module".
type WeightLoader interface {
	Load(ctx context.Context, manifest ModelManifest, pool *gpu.BufferPool, device *gpu.Device) ([]WeightHandle, error)
}

// ExpertLoader makes an MoE expert's weights resident and gathers the
// hidden-state rows routed to it (spec.md §6 "Expert loader" and §9
// Design Note "MoE expert lazy load": "expose the expert loader as a
// capability trait with async ensure and synchronous gather; the
// scheduler's ready-set computation must not block on loads — loads
// happen between forward passes"). EnsureLoaded may hit disk; GatherTokens
// never blocks on I/O, only on weights EnsureLoaded has already settled.
type ExpertLoader interface {
	EnsureLoaded(ctx context.Context, layerIdx, expertIdx int) error
	GatherTokens(hidden *gpu.Tensor, tokenIndices []int32, hiddenSize int) (*gpu.Tensor, error)
}
