package pipeline

import (
	"context"
	"strings"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
	"github.com/dopplerml/doppler/quant"
)

// blockElements returns the number of logical elements one block of
// dtype decodes to, matching the constants quant's codecs use.
func blockElements(dtype gpu.Dtype) int64 {
	switch dtype {
	case gpu.DtypeQ4K:
		return quant.Q4KBlockSize
	case gpu.DtypeQ6K:
		return quant.Q6KBlockSize
	case gpu.DtypeQ8_0:
		return quant.Q8_0BlockSize
	case gpu.DtypeMXFP4:
		return quant.MXFP4BlockSize
	default:
		return 1
	}
}

// dequantWeight expands a quantized weight tensor into a full f32
// tensor of the same logical shape (spec.md §4.3 "dequant-then-matmul"
// path).
func dequantWeight(ctx context.Context, rt *runtime, w *gpu.Tensor) (*gpu.Tensor, error) {
	numElements := w.Shape.NumElements()
	bs := blockElements(w.Dtype)
	numBlocks := (numElements + bs - 1) / bs

	variant := kernels.SelectDequant(kernels.DequantContext{
		Format:      w.Dtype,
		NumElements: numElements,
		BlockSize:   bs,
		Caps:        rt.device.Capabilities(),
	})

	out, err := rt.allocActivation("dequant_out", numElements, gpu.DtypeF32)
	if err != nil {
		return nil, err
	}
	out.Shape = w.Shape

	invocations := numElements
	if strings.HasSuffix(variant, "vec4") {
		invocations = (numElements + 3) / 4
	}
	wg := ceilDivU32(invocations, 64)

	uniform, err := rt.writeUniform("dequant_dims", uint32(numElements), uint32(numBlocks), wg, 0)
	if err != nil {
		return nil, err
	}

	err = rt.dispatch(ctx, kernels.OpDequant, variant, "dequant",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, w.Buffer),
			buf(2, out.Buffer),
		},
	)
	return out, err
}
