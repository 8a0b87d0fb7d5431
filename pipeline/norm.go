package pipeline

import (
	"context"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
)

// rmsNorm computes y = x/rms(x) * weight (optionally with a +1 weight
// offset for Gemma-style models, and optionally fusing a residual add
// before normalizing), per spec.md §4.4 step 1 and the sandwich-norm
// steps.
func rmsNorm(ctx context.Context, rt *runtime, x, weight *gpu.Tensor, residual *gpu.Tensor, eps float64, weightOffset bool) (*gpu.Tensor, error) {
	numRows := int64(x.Shape[0])
	hidden := int64(x.Shape[len(x.Shape)-1])

	fuseResidual := residual != nil
	variant := kernels.SelectRMSNorm(kernels.RMSNormContext{Hidden: hidden, FuseResidual: fuseResidual})

	out, err := rt.allocActivation("rmsnorm_out", numRows*hidden, gpu.DtypeF32)
	if err != nil {
		return nil, err
	}
	out.Shape = x.Shape

	offsetBit := uint32(0)
	if weightOffset {
		offsetBit = 1
	}
	uniform, err := rt.writeUniform("rmsnorm_dims", uint32(numRows), uint32(hidden), float32Bits(eps), offsetBit)
	if err != nil {
		return nil, err
	}

	residualBuf := x.Buffer // dummy binding when not fusing; shader ignores it in that branch
	if fuseResidual {
		residualBuf = residual.Buffer
	}

	wg := ceilDivU32(numRows, 64)
	err = rt.dispatch(ctx, kernels.OpRMSNorm, variant, "rmsnorm",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, x.Buffer),
			buf(2, weight.Buffer),
			buf(3, residualBuf),
			buf(4, out.Buffer),
		},
	)
	return out, err
}
