package pipeline

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
	"github.com/dopplerml/doppler/model"
)

// routedExpert is one expert a token was routed to, with its
// renormalized routing weight (spec.md §4.4 "MoE FFN").
type routedExpert struct {
	expert int
	weight float32
}

// expertAssignment is one token routed to a given expert, the unit
// moe's per-expert gather/scatter loop consumes: batches[e] lists every
// (token, weight) pair assigned to expert e.
type expertAssignment struct {
	token  int
	weight float32
}

// routeTopK computes, for each of numTokens rows of logits (laid out
// row-major as numTokens x numExperts), the top-k expert indices and
// their softmax-normalized routing weights, per spec.md §4.4 "Router
// computes top-k expert indices and weights via softmax over a router
// projection". Softmax is taken over the full row before top-k
// selection, then renormalized over just the selected k so the kept
// weights sum to 1 — the standard MoE routing convention reflected in
// the GLM-4-MoE and GGML backend reference files.
//
// Pure and CPU-only so it can be tested without a device; moe() is the
// only caller and supplies logits via a host readback.
func routeTopK(logits []float32, numTokens, numExperts, topK int) [][]routedExpert {
	out := make([][]routedExpert, numTokens)
	type scored struct {
		expert int
		prob   float32
	}
	row := make([]scored, numExperts)
	for t := 0; t < numTokens; t++ {
		base := t * numExperts
		maxLogit := float32(math.Inf(-1))
		for e := 0; e < numExperts; e++ {
			if v := logits[base+e]; v > maxLogit {
				maxLogit = v
			}
		}
		var sum float32
		for e := 0; e < numExperts; e++ {
			p := float32(math.Exp(float64(logits[base+e] - maxLogit)))
			row[e] = scored{expert: e, prob: p}
			sum += p
		}
		for e := range row {
			row[e].prob /= sum
		}
		sort.Slice(row, func(i, j int) bool { return row[i].prob > row[j].prob })

		k := topK
		if k > numExperts {
			k = numExperts
		}
		var kSum float32
		for i := 0; i < k; i++ {
			kSum += row[i].prob
		}
		for i := 0; i < k; i++ {
			w := row[i].prob
			if kSum > 0 {
				w /= kSum
			}
			out[t] = append(out[t], routedExpert{expert: row[i].expert, weight: w})
		}
	}
	return out
}

func decodeF32LE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return out
}

// submitAndReopen ends rt.rec's current recording, submits it, awaits
// completion, and opens a fresh recorder in its place. MoE routing
// needs the router logits on the host before it can shape the
// per-expert gather/scatter dispatches that follow, which forces a
// submission boundary mid forward-pass — an additional suspension point
// beyond the three in spec.md §5 (pipeline-compilation miss, submit
// completion, final sampled-token readback). This one is intrinsic to
// data-dependent routing:
// there is no way to decide which rows to gather without reading the
// router's output first.
func submitAndReopen(ctx context.Context, rt *runtime, label string) error {
	completion, err := rt.rec.Submit()
	if err != nil {
		return err
	}
	if err := completion.Await(ctx); err != nil {
		return err
	}
	rec, err := gpu.NewRecorder(rt.device, rt.pool, label)
	if err != nil {
		return err
	}
	rt.rec = rec
	return nil
}

// moe runs one layer's mixture-of-experts feed-forward block (spec.md
// §4.4 "MoE FFN"): pre-FFN norm, router projection + host-side top-k
// softmax, then for each expert with at least one assigned token,
// gather its tokens, run gate/up/activation/down, and scatter-add the
// weighted result back into the residual stream. out starts as a copy
// of x (via scaledAdd's scale=0 copy trick) so scatter-add's
// accumulate-in-place semantics double as the residual add.
func moe(ctx context.Context, rt *runtime, arch model.Arch, l *model.LayerWeights, x *gpu.Tensor, isDecode bool) (*gpu.Tensor, error) {
	numTokens := int64(x.Shape[0])
	hidden := int64(x.Shape[len(x.Shape)-1])

	normed, err := rmsNorm(ctx, rt, x, l.PreFFNNorm, nil, arch.RMSNormEps, arch.RMSNormWeightOffset)
	if err != nil {
		return nil, err
	}

	routerLogits, err := linear(ctx, rt, normed, l.RouterProj, isDecode)
	if err != nil {
		return nil, err
	}
	// linear's output is normally released back to the pool once the
	// recorder it was tracked against completes; untrack it so it
	// survives the submit below for ReadBuffer, then release it
	// ourselves once the read is done.
	rt.rec.Untrack(routerLogits.Buffer)

	if err := submitAndReopen(ctx, rt, "moe_router_readback"); err != nil {
		return nil, err
	}

	raw, err := rt.device.ReadBuffer(ctx, routerLogits.Buffer, 0, numTokens*int64(arch.NumExperts)*4)
	rt.pool.Release(routerLogits.Buffer)
	if err != nil {
		return nil, err
	}
	logits := decodeF32LE(raw)

	perToken := routeTopK(logits, int(numTokens), arch.NumExperts, arch.TopKExperts)
	batches := make([][]expertAssignment, arch.NumExperts)
	for tok, row := range perToken {
		for _, a := range row {
			batches[a.expert] = append(batches[a.expert], expertAssignment{token: tok, weight: a.weight})
		}
	}

	out, err := rt.allocActivation("moe_out", numTokens*hidden, gpu.DtypeF32)
	if err != nil {
		return nil, err
	}
	out.Shape = x.Shape
	if out, err = scaledAdd(ctx, rt, x, x, 0, out); err != nil {
		return nil, err
	}

	for e, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		if err := runExpert(ctx, rt, arch, &l.Experts[e], normed, out, batch, isDecode); err != nil {
			return nil, err
		}
	}

	if l.PostFFNNorm != nil {
		return rmsNorm(ctx, rt, out, l.PostFFNNorm, nil, arch.RMSNormEps, arch.RMSNormWeightOffset)
	}
	return out, nil
}

// runExpert gathers batch's tokens from normed, runs one expert's
// gate/up/activation/down, and scatter-adds the weighted result into
// out at the original token positions.
func runExpert(ctx context.Context, rt *runtime, arch model.Arch, e *model.ExpertWeights, normed, out *gpu.Tensor, batch []expertAssignment, isDecode bool) error {
	hidden := int64(normed.Shape[len(normed.Shape)-1])
	n := int64(len(batch))

	idxBytes := make([]byte, n*4)
	weightBytes := make([]byte, n*4)
	for i, a := range batch {
		binary.LittleEndian.PutUint32(idxBytes[i*4:i*4+4], uint32(a.token))
		binary.LittleEndian.PutUint32(weightBytes[i*4:i*4+4], math.Float32bits(a.weight))
	}
	idxBuf, err := rt.uploadStorage("moe_token_idx", idxBytes)
	if err != nil {
		return err
	}
	weightBuf, err := rt.uploadStorage("moe_weight", weightBytes)
	if err != nil {
		return err
	}

	gathered, err := rt.allocActivation("moe_gathered", n*hidden, gpu.DtypeF32)
	if err != nil {
		return err
	}
	gathered.Shape = gpu.Shape{int(n), int(hidden)}
	wg := ceilDivU32(n*hidden, 64)
	gatherUniform, err := rt.writeUniform("gather_dims", uint32(n), uint32(hidden), float32Bits(1.0), wg)
	if err != nil {
		return err
	}
	if err := rt.dispatch(ctx, kernels.OpGather, "default", "moe_gather",
		gpu.DispatchWorkgroups{X: wg, Y: 1, Z: 1},
		[]binding{buf(0, gatherUniform), buf(1, idxBuf), buf(2, normed.Buffer), buf(3, gathered.Buffer)},
	); err != nil {
		return err
	}

	gate, err := linear(ctx, rt, gathered, e.GateProj, isDecode)
	if err != nil {
		return err
	}
	up, err := linear(ctx, rt, gathered, e.UpProj, isDecode)
	if err != nil {
		return err
	}
	gated, err := applyGating(ctx, rt, gate, up, arch.Activation, 0)
	if err != nil {
		return err
	}

	down, err := linear(ctx, rt, gated, e.DownProj, isDecode)
	if err != nil {
		return err
	}

	scatterWG := ceilDivU32(n*hidden, 64)
	scatterUniform, err := rt.writeUniform("scatter_dims", uint32(n), uint32(hidden), scatterWG, 0)
	if err != nil {
		return err
	}
	return rt.dispatch(ctx, kernels.OpScatterAdd, "default", "moe_scatter",
		gpu.DispatchWorkgroups{X: scatterWG, Y: 1, Z: 1},
		[]binding{
			buf(0, scatterUniform),
			buf(1, idxBuf),
			buf(2, weightBuf),
			buf(3, down.Buffer),
			buf(4, out.Buffer),
		},
	)
}
