// Package gpu provides the GPU resource substrate doppler's inference
// pipeline runs on: device acquisition and capability discovery, a
// size-bucketed buffer pool, a tensor view over pooled buffers, a
// small-uniform cache, and a command recorder that batches kernel
// dispatches into a single queue submission per forward pass.
package gpu
