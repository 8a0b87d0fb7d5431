package pipeline

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
	"github.com/dopplerml/doppler/model"
)

// embedTokens gathers rows of m.EmbedTokens by token id into a
// (len(tokenIDs), hidden_size) activation, scaling by sqrt(hidden_size)
// when the architecture requests it (spec.md §4.4 "Embedding").
func embedTokens(ctx context.Context, rt *runtime, m *model.Model, tokenIDs []int32) (*gpu.Tensor, error) {
	numTokens := int64(len(tokenIDs))
	hidden := int64(m.Arch.HiddenSize)

	idBytes := make([]byte, numTokens*4)
	for i, id := range tokenIDs {
		binary.LittleEndian.PutUint32(idBytes[i*4:i*4+4], uint32(id))
	}
	idBuf, err := rt.uploadStorage("embed_token_ids", idBytes)
	if err != nil {
		return nil, err
	}

	out, err := rt.allocActivation("embed_out", numTokens*hidden, gpu.DtypeF32)
	if err != nil {
		return nil, err
	}

	scale := float64(1.0)
	if m.Arch.ScaleEmbeddings {
		scale = math.Sqrt(float64(hidden))
	}
	wg := ceilDivU32(numTokens*hidden, 64)
	uniform, err := rt.writeUniform("gather_dims", uint32(numTokens), uint32(hidden), float32Bits(scale), wg)
	if err != nil {
		return nil, err
	}

	err = rt.dispatch(ctx, kernels.OpGather, "default", "embed",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{
			buf(0, uniform),
			buf(1, idBuf),
			buf(2, m.EmbedTokens.Buffer),
			buf(3, out.Buffer),
		},
	)
	if err != nil {
		return nil, err
	}
	out.Shape = gpu.Shape{int(numTokens), int(hidden)}
	return out, nil
}
