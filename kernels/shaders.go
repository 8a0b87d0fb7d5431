package kernels

import _ "embed"

// Embedded WGSL shader sources, one module per operation family. Each
// module declares several @compute entry points; Variant.EntryPoint
// selects among them at pipeline-creation time.
//
// Grounded on the teacher's shaders.go embedding pattern
// (internal/gpu/shaders.go): go:embed over shaders/*.wgsl into package
// vars, consumed by the registry at compile time.

//go:embed shaders/matmul.wgsl
var matmulSource string

//go:embed shaders/attention.wgsl
var attentionSource string

//go:embed shaders/dequant.wgsl
var dequantSource string

//go:embed shaders/rmsnorm.wgsl
var rmsnormSource string

//go:embed shaders/fused.wgsl
var fusedSource string

//go:embed shaders/ffn.wgsl
var ffnSource string

//go:embed shaders/softmax.wgsl
var softmaxSource string

//go:embed shaders/sample.wgsl
var sampleSource string

//go:embed shaders/misc.wgsl
var miscSource string
