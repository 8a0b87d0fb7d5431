package gpu

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"
)

// ReadBuffer copies size bytes starting at offset out of src into a
// freshly allocated CPU-side slice. This is one of the three
// cooperative suspension points in spec.md §5 (final-token readback);
// MoE routing also calls this mid forward-pass to read router logits
// back to the host before building per-expert dispatches, an explicit
// exception to the "no other suspension points" rule, since expert
// assignment is a data-dependent dispatch shape that cannot be decided
// on the GPU timeline alone.
//
// Grounded on the teacher's HALAdapter.ReadBuffer (backend/native/adapter.go):
// same staging-buffer-and-copy shape, completed with the buffer-mapping
// calls the teacher's own adapter left a TODO for (MapAsync/PollMapAsync/
// GetMappedRange, exercised directly in backend/native/hal_buffer_test.go).
func (d *Device) ReadBuffer(ctx context.Context, src *Buffer, offset, size int64) ([]byte, error) {
	if err := d.checkLost(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, NewValidationError([]int{int(size)}, "gpu: read size must be positive")
	}
	if offset < 0 || offset+size > src.Size() {
		return nil, NewValidationError([]int{int(offset), int(size)}, "gpu: read range out of bounds")
	}

	stagingDesc := &hal.BufferDescriptor{
		Label: "readback-staging",
		Size:  uint64(size),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	}
	staging, err := d.HAL().CreateBuffer(stagingDesc)
	if err != nil {
		return nil, fmt.Errorf("gpu: create readback staging buffer: %w", err)
	}
	defer staging.Destroy()

	encoder, err := d.HAL().CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback-copy"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create readback encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback-copy"); err != nil {
		return nil, fmt.Errorf("gpu: begin readback encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src.Raw(), staging, []hal.BufferCopy{
		{SrcOffset: uint64(offset), DstOffset: 0, Size: uint64(size)},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end readback encoding: %w", err)
	}
	defer cmdBuf.Destroy()

	fence, err := d.HAL().CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create readback fence: %w", err)
	}
	defer d.HAL().DestroyFence(fence)

	if err := d.Queue().Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		d.MarkLost(err)
		return nil, d.LostError()
	}

	const pollTimeoutNS = 50_000_000
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := d.HAL().Wait(fence, 1, pollTimeoutNS)
		if err != nil {
			d.MarkLost(err)
			return nil, d.LostError()
		}
		if ok {
			break
		}
	}

	mapDone := make(chan error, 1)
	if err := staging.MapAsync(types.MapModeRead, 0, uint64(size), func(ok bool) {
		if !ok {
			mapDone <- fmt.Errorf("gpu: readback map failed")
			return
		}
		mapDone <- nil
	}); err != nil {
		return nil, fmt.Errorf("gpu: map readback staging buffer: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if staging.PollMapAsync() {
			break
		}
	}
	if err := <-mapDone; err != nil {
		return nil, err
	}

	mapped, err := staging.GetMappedRange(0, uint64(size))
	if err != nil {
		return nil, fmt.Errorf("gpu: get mapped range: %w", err)
	}
	out := make([]byte, size)
	copy(out, mapped)
	if err := staging.Unmap(); err != nil {
		return nil, fmt.Errorf("gpu: unmap readback staging buffer: %w", err)
	}
	return out, nil
}
