package pipeline

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"sort"

	"github.com/dopplerml/doppler/config"
	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
)

// Sampler drives token selection across a generation session: it owns
// the RNG draws the sampling kernels need and the list of recently
// generated tokens repetition penalty reads (spec.md §4.4 "Sampling").
type Sampler struct {
	cfg    config.Sampling
	rng    *rand.Rand
	recent []int32
}

// NewSampler seeds a Sampler from cfg's seed, for reproducible
// sequences given the same seed and prompt.
func NewSampler(cfg config.Sampling) *Sampler {
	return &Sampler{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// needsHostPass reports whether cfg needs behavior the GPU sampling
// kernels don't implement: nucleus (top-p) filtering and per-token
// repetition penalty both require scanning the full vocabulary against
// per-request state (the top-p threshold, the recent-token set) that
// doesn't fit the kernels' single-pass, no-host-state shape.
func needsHostPass(cfg config.Sampling) bool {
	return cfg.TopP < 1.0 || cfg.RepetitionPenalty != 1.0
}

// finishAndRead submits rt's current recorder, awaits completion, reads
// back size bytes at offset 0 of buf, and releases buf. This is the
// final-token-readback suspension point spec.md §5 names; sampleToken
// is always the last step of a forward pass, so unlike moe.go's
// submitAndReopen there is nothing left in this recorder to resume —
// the caller opens a fresh recorder for the next forward pass.
func finishAndRead(ctx context.Context, rt *runtime, buf *gpu.Buffer, size int64) ([]byte, error) {
	rt.rec.Untrack(buf)
	completion, err := rt.rec.Submit()
	if err != nil {
		return nil, err
	}
	if err := completion.Await(ctx); err != nil {
		return nil, err
	}
	raw, err := rt.device.ReadBuffer(ctx, buf, 0, size)
	rt.pool.Release(buf)
	return raw, err
}

// sampleToken picks the next token id from one row of logits (shape
// [1, vocab]), per spec.md §4.4 "Sampling":
//   - temperature 0: GPU argmax/argmax_reduce, a 4-byte readback.
//   - temperature > 0, top_p == 1 and repetition_penalty == 1: GPU
//     single_pass (top_k 1..16; returns the highest temperature-scaled
//     logit, with no random draw) or softmax_and_sample (draws from the
//     full-vocabulary softmax; top_k is not applied), a 4-byte readback.
//   - otherwise: the GPU kernels can't express nucleus filtering or a
//     per-token penalty, so this reads back the full logits row and
//     runs the exact CPU sampler below.
func (s *Sampler) sampleToken(ctx context.Context, rt *runtime, logits *gpu.Tensor) (int32, error) {
	vocab := int64(logits.Shape[len(logits.Shape)-1])

	if s.cfg.Temperature > 0 && needsHostPass(s.cfg) {
		raw, err := finishAndRead(ctx, rt, logits.Buffer, vocab*4)
		if err != nil {
			return 0, err
		}
		tok := sampleCPU(decodeF32LE(raw), s.cfg, s.recent, s.rng.Float64())
		s.recent = append(s.recent, tok)
		return tok, nil
	}

	variant := kernels.SelectSample(kernels.SampleContext{Vocab: vocab, Temperature: s.cfg.Temperature, TopK: s.cfg.TopK})
	out, err := rt.allocActivation("sample_out", 1, gpu.DtypeU32)
	if err != nil {
		return 0, err
	}
	uniform, err := rt.writeUniform("sample_dims",
		uint32(vocab), uint32(s.cfg.TopK), float32Bits(s.cfg.Temperature), float32Bits(s.rng.Float64()),
	)
	if err != nil {
		return 0, err
	}
	if err := rt.dispatch(ctx, kernels.OpSample, variant, "sample",
		gpu.DispatchWorkgroups{X: 1, Y: 1, Z: 1},
		[]binding{buf(0, uniform), buf(1, logits.Buffer), buf(2, out.Buffer)},
	); err != nil {
		return 0, err
	}

	raw, err := finishAndRead(ctx, rt, out.Buffer, 4)
	if err != nil {
		return 0, err
	}
	tok := int32(binary.LittleEndian.Uint32(raw))
	s.recent = append(s.recent, tok)
	return tok, nil
}

// sampleCPU implements spec.md §4.4 "Sampling" in full: temperature
// scaling, top-k filter, top-p (nucleus) filter, renormalization, a
// multinomial draw against rand01, with repetition penalty applied to
// recently generated tokens before any of the above. Pure function so
// it is directly testable without a device.
func sampleCPU(logits []float32, cfg config.Sampling, recent []int32, rand01 float64) int32 {
	scaled := make([]float64, len(logits))
	for i, v := range logits {
		scaled[i] = float64(v) / cfg.Temperature
	}
	if cfg.RepetitionPenalty != 1.0 {
		seen := make(map[int32]bool, len(recent))
		for _, tok := range recent {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			if int(tok) < 0 || int(tok) >= len(scaled) {
				continue
			}
			if scaled[tok] > 0 {
				scaled[tok] /= cfg.RepetitionPenalty
			} else {
				scaled[tok] *= cfg.RepetitionPenalty
			}
		}
	}

	probs := softmax(scaled)

	type indexed struct {
		idx int
		p   float64
	}
	ranked := make([]indexed, len(probs))
	for i, p := range probs {
		ranked[i] = indexed{idx: i, p: p}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].p > ranked[j].p })

	if cfg.TopK > 0 && cfg.TopK < len(ranked) {
		ranked = ranked[:cfg.TopK]
	}
	if cfg.TopP < 1.0 {
		var cum float64
		cut := len(ranked)
		for i, r := range ranked {
			cum += r.p
			if cum >= cfg.TopP {
				cut = i + 1
				break
			}
		}
		ranked = ranked[:cut]
	}

	var sum float64
	for _, r := range ranked {
		sum += r.p
	}
	target := rand01 * sum
	var cum float64
	for _, r := range ranked {
		cum += r.p
		if cum >= target {
			return int32(r.idx)
		}
	}
	return int32(ranked[len(ranked)-1].idx)
}

// softmax is a numerically stable softmax over x.
func softmax(x []float64) []float64 {
	m := math.Inf(-1)
	for _, v := range x {
		if v > m {
			m = v
		}
	}
	out := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		e := math.Exp(v - m)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
