package kernels

import "github.com/dopplerml/doppler/gpu"

// RMSNormContext is the call-site record for the RMSNorm selector
// (spec.md §4.2 "RMSNorm").
type RMSNormContext struct {
	Hidden        int64
	FuseResidual  bool
}

// SelectRMSNorm picks small/residual/default per spec.md §4.2.
func SelectRMSNorm(c RMSNormContext) string {
	if c.Hidden <= 256 {
		return "small"
	}
	if c.FuseResidual {
		return "residual"
	}
	return "default"
}

// FusedMatmulNormContext is the call-site record for the fused
// matmul+RMSNorm selector. N is the matmul's output width.
type FusedMatmulNormContext struct {
	N int64
}

// SelectFusedMatmulNorm returns "small" for N <= 256, "medium" for
// N <= 4096, and "" above that, when the caller should fall back to
// separate norm + matmul dispatches (spec.md §4.2: "else fall back to
// separate norm after matmul"). The threshold is on N only; the fused
// kernel's workgroup array holds the K-long normalized input row.
func SelectFusedMatmulNorm(c FusedMatmulNormContext) string {
	switch {
	case c.N <= 256:
		return "small"
	case c.N <= 4096:
		return "medium"
	default:
		return ""
	}
}

// FFNContext is the call-site record for the FFN selector (spec.md
// §4.2 "FFN").
type FFNContext struct {
	Intermediate int64
	BatchSize    int
	Caps         gpu.Capabilities
}

const ffnSmallIntermediateThreshold = 16384

// SelectFFN picks multi/batched/f16/default per spec.md §4.2.
func SelectFFN(c FFNContext) string {
	if c.BatchSize > 1 {
		return "batched"
	}
	if c.Caps.HasF16 {
		return "f16"
	}
	if c.Intermediate <= ffnSmallIntermediateThreshold {
		return "multi"
	}
	return "default"
}
