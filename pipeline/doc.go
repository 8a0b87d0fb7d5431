// Package pipeline drives the decoder-only transformer forward pass
// (spec.md §4.4): embedding, per-layer attention/FFN/MoE, final norm and
// LM head, and sampling, across the two-phase prefill/decode execution
// model in spec.md §4.4/§5.
//
// A forward pass is recorded into a single gpu.Recorder and submitted
// once, except that each MoE layer submits and reopens the recorder to
// read its router logits (see moe.go's submitAndReopen). Apart from that
// router readback, callers await only the three suspension points named
// in spec.md §5: pipeline-compilation miss (inside kernels.Registry),
// the recorder's submit completion, and the final sampled-token
// readback.
package pipeline
