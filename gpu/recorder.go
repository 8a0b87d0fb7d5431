package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// DispatchWorkgroups is the (x, y, z) workgroup count for one dispatch.
type DispatchWorkgroups struct {
	X, Y, Z uint32
}

// Dispatch is one recorded kernel invocation: a compiled pipeline, its
// bind groups keyed by binding index, and a workgroup count.
type Dispatch struct {
	Pipeline   hal.ComputePipeline
	BindGroups map[uint32]hal.BindGroup
	Workgroups DispatchWorkgroups
	Label      string
}

// Recorder accumulates compute dispatches and issues exactly one queue
// submission at Submit, per spec.md §4.1's command recorder contract:
// "all dispatches recorded between begin and submit execute in a single
// queue submission (no implicit split)".
//
// Grounded on the teacher's CoreCommandEncoder/ComputePassEncoder state
// machine (internal/gpu/command_encoder.go, internal/gpu/compute_pass.go)
// and the raw hal usage in backend/native/adapter.go's
// BeginComputePass/Submit pair, collapsed into the single encoder+pass
// the inference driver needs (one compute pass per forward-pass batch,
// never interleaved with a render pass).
type Recorder struct {
	mu sync.Mutex

	device *Device
	pool   *BufferPool

	encoder hal.CommandEncoder
	pass    hal.ComputePassEncoder
	label   string

	tracked []*Buffer
	done    bool

	log *slog.Logger
}

// NewRecorder begins recording: it creates a command encoder and opens
// its single compute pass. Kernel dispatches are recorded against this
// pass until Submit.
func NewRecorder(device *Device, pool *BufferPool, label string) (*Recorder, error) {
	if err := device.checkLost(); err != nil {
		return nil, err
	}

	encoder, err := device.HAL().CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})

	return &Recorder{
		device:  device,
		pool:    pool,
		encoder: encoder,
		pass:    pass,
		label:   label,
		log:     device.Logger(),
	}, nil
}

// Dispatch records one kernel invocation into the single accumulated
// compute pass. No dispatch suspends the driver (spec.md §5): this call
// only records, it never submits.
func (r *Recorder) Dispatch(d Dispatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return fmt.Errorf("gpu: recorder %q already submitted", r.label)
	}
	if d.Pipeline == nil {
		return NewValidationError(nil, "dispatch %q: nil pipeline", d.Label)
	}
	if d.Workgroups.X == 0 || d.Workgroups.Y == 0 || d.Workgroups.Z == 0 {
		return NewValidationError([]int{int(d.Workgroups.X), int(d.Workgroups.Y), int(d.Workgroups.Z)},
			"dispatch %q: workgroup counts must be positive", d.Label)
	}
	limit := r.device.Capabilities().MaxComputeWorkgroupsPerDim
	if limit > 0 {
		if d.Workgroups.X > limit {
			return NewDispatchExceedsLimitError("x", int(d.Workgroups.X), int(limit))
		}
		if d.Workgroups.Y > limit {
			return NewDispatchExceedsLimitError("y", int(d.Workgroups.Y), int(limit))
		}
		if d.Workgroups.Z > limit {
			return NewDispatchExceedsLimitError("z", int(d.Workgroups.Z), int(limit))
		}
	}

	r.pass.SetPipeline(d.Pipeline)
	for idx, bg := range d.BindGroups {
		r.pass.SetBindGroup(idx, bg, nil)
	}
	r.pass.Dispatch(d.Workgroups.X, d.Workgroups.Y, d.Workgroups.Z)
	r.log.Debug("gpu: dispatch recorded", "label", d.Label, "wg", d.Workgroups)
	return nil
}

// TrackTemporary marks buf as owned by this recorder's submission: its
// state becomes tracked-by-recorder, and it is released back to the
// pool automatically when Submit's completion handle resolves.
func (r *Recorder) TrackTemporary(buf *Buffer) {
	if buf == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	buf.setState(BufferTrackedByRecorder)
	r.tracked = append(r.tracked, buf)
}

// Untrack removes buf from this recorder's auto-release list, for a
// caller that needs the buffer's contents to survive past Submit's
// completion (e.g. a host readback) and will release it back to the
// pool itself once done. No-op if buf isn't tracked.
func (r *Recorder) Untrack(buf *Buffer) {
	if buf == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.tracked {
		if b == buf {
			r.tracked = append(r.tracked[:i], r.tracked[i+1:]...)
			break
		}
	}
}

// SubmitCompletion is the handle returned by Submit. Awaiting it blocks
// until the GPU finishes the submission and releases every tracked
// temporary buffer back to the pool — one of the three cooperative
// suspension points in spec.md §5.
type SubmitCompletion struct {
	recorder *Recorder
	fence    hal.Fence
	value    uint64
}

// Submit ends the compute pass, finishes the command buffer, and issues
// exactly one queue submission, per spec.md §4.1.
func (r *Recorder) Submit() (*SubmitCompletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil, fmt.Errorf("gpu: recorder %q already submitted", r.label)
	}
	r.done = true

	r.pass.End()
	cmdBuf, err := r.encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: finish command buffer: %w", err)
	}

	fence, err := r.device.HAL().CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create fence: %w", err)
	}

	if err := r.device.Queue().Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, NewRuntimeError(fmt.Errorf("queue submit failed: %w", err))
	}
	r.log.Debug("gpu: submitted", "label", r.label, "tracked", len(r.tracked))

	return &SubmitCompletion{recorder: r, fence: fence, value: 1}, nil
}

// Await blocks until the GPU reports the submission complete, or ctx is
// cancelled. On completion, every buffer tracked via TrackTemporary is
// released back to the pool. A device-lost signal observed during the
// wait is recorded on the Device and returned as ErrDeviceLost.
func (c *SubmitCompletion) Await(ctx context.Context) error {
	const pollTimeoutNS = 50_000_000 // 50ms per poll, so ctx cancellation is responsive
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := c.recorder.device.HAL().Wait(c.fence, c.value, pollTimeoutNS)
		if err != nil {
			c.recorder.device.MarkLost(err)
			return c.recorder.device.LostError()
		}
		if ok {
			break
		}
	}

	for _, buf := range c.recorder.tracked {
		c.recorder.pool.Release(buf)
	}
	return nil
}

// Discard releases tracked temporaries without waiting for GPU
// completion semantics beyond what Await already guarantees; used by
// cooperative cancellation (spec.md §5): "in-flight submissions run to
// completion but their results are discarded and temporary buffers
// released".
func (c *SubmitCompletion) Discard(ctx context.Context) {
	_ = c.Await(ctx)
}
