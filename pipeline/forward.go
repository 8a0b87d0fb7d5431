package pipeline

import (
	"context"
	"fmt"

	"github.com/dopplerml/doppler/config"
	"github.com/dopplerml/doppler/gpu"
	"github.com/dopplerml/doppler/kernels"
	"github.com/dopplerml/doppler/model"
	"github.com/dopplerml/doppler/quant"
)

// Engine drives forward passes over a loaded model against a single KV
// cache, per spec.md §4.4 "Forward pass": embed, run every layer, final
// norm, LM-head projection, optional softcap, sample. Every forward
// pass is recorded into one command recorder and submitted once (the
// MoE router readback and the final sampling readback are the two
// necessary exceptions to that rule, each documented at its call site).
type Engine struct {
	device   *gpu.Device
	pool     *gpu.BufferPool
	registry *kernels.Registry
	uniforms *gpu.UniformCache
	policy   quant.FusedMatmulPolicy

	model   *model.Model
	kv      *KVCache
	sampler *Sampler
	cfg     config.Config
}

// NewEngine builds an Engine over m, allocating a fresh KV cache sized
// for m.Arch.MaxSeqLen and a Sampler seeded from cfg.Sampling.
func NewEngine(device *gpu.Device, pool *gpu.BufferPool, registry *kernels.Registry, m *model.Model, cfg config.Config, kvDtype gpu.Dtype) (*Engine, error) {
	kv, err := NewKVCache(pool, m, kvDtype)
	if err != nil {
		return nil, err
	}
	return &Engine{
		device:   device,
		pool:     pool,
		registry: registry,
		uniforms: gpu.NewUniformCache(device, pool),
		model:    m,
		kv:       kv,
		sampler:  NewSampler(cfg.Sampling),
		cfg:      cfg,
	}, nil
}

// Close releases the engine's KV cache back to the pool. Call once the
// sequence is finished.
func (e *Engine) Close() {
	e.kv.Release(e.pool)
}

// Step runs one forward-pass step over tokenIDs (the whole prompt for
// the prefill step, a single generated token for every decode step
// after) and returns the sampled next token id. isDecode selects
// decode-tuned kernel variants (spec.md §4.2's M==1 cases) when
// len(tokenIDs) == 1, matching every per-operation selector in this
// package.
func (e *Engine) Step(ctx context.Context, tokenIDs []int32) (int32, error) {
	if e.device.IsLost() {
		return 0, e.device.LostError()
	}

	rec, err := gpu.NewRecorder(e.device, e.pool, "forward_step")
	if err != nil {
		return 0, err
	}
	rt := &runtime{
		device:   e.device,
		registry: e.registry,
		pool:     e.pool,
		uniforms: e.uniforms,
		rec:      rec,
		policy:   e.policy,
	}

	isDecode := len(tokenIDs) == 1
	swigluLimit := e.cfg.FFN.SwiGLULimit

	x, err := embedTokens(ctx, rt, e.model, tokenIDs)
	if err != nil {
		return 0, fmt.Errorf("pipeline: embed: %w", err)
	}

	for i := range e.model.Layers {
		x, err = runLayer(ctx, rt, e.model.Arch, &e.model.Layers[i], e.kv, x, swigluLimit, isDecode)
		if err != nil {
			return 0, fmt.Errorf("pipeline: layer %d: %w", i, err)
		}
		// moe() may have submitted and reopened rt.rec mid-layer
		// (pipeline/moe.go's submitAndReopen); every subsequent layer
		// keeps recording into whatever recorder rt.rec now holds.
	}
	e.kv.Advance(len(tokenIDs))

	normed, err := rmsNorm(ctx, rt, x, e.model.FinalNorm, nil, e.model.Arch.RMSNormEps, e.model.Arch.RMSNormWeightOffset)
	if err != nil {
		return 0, fmt.Errorf("pipeline: final norm: %w", err)
	}

	// Only the final position's logits feed sampling; restrict the
	// (expensive) LM-head projection to it rather than computing
	// logits for every prompt position during prefill.
	normedLast, err := lastRow(ctx, rt, normed, int64(len(tokenIDs)), int64(e.model.Arch.HiddenSize), "final_hidden")
	if err != nil {
		return 0, fmt.Errorf("pipeline: select final position: %w", err)
	}

	logits, err := linear(ctx, rt, normedLast, e.model.LMHeadWeight(), isDecode)
	if err != nil {
		return 0, fmt.Errorf("pipeline: lm head: %w", err)
	}

	if err := applySoftcap(ctx, rt, logits, e.model.Arch.FinalLogitSoftcapping); err != nil {
		return 0, fmt.Errorf("pipeline: final softcap: %w", err)
	}

	tok, err := e.sampler.sampleToken(ctx, rt, logits)
	if err != nil {
		if e.device.IsLost() {
			return 0, e.device.LostError()
		}
		return 0, fmt.Errorf("pipeline: sample: %w", err)
	}
	return tok, nil
}

// IsStop reports whether tok is one of the model's configured stop
// tokens (spec.md §3 "stop token set").
func (e *Engine) IsStop(tok int32) bool {
	_, ok := e.model.StopTokens[tok]
	return ok
}
