package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"
)

// Capabilities is the capability-query surface used by the kernel
// variant selector (spec.md §4.2). It reports everything a selector
// needs to pick a matmul/attention/dequant/... variant.
type Capabilities struct {
	HasF16                        bool
	HasSubgroups                  bool
	HasTimestampQuery             bool
	MaxComputeWorkgroupsPerDim    uint32
	MaxComputeWorkgroupStorageSize uint32
}

// Device is the handle returned by AcquireDevice. It exposes queue
// submission, pipeline compilation, bind-group-layout creation, buffer
// allocation with usage flags, and a capability query, per spec.md §4.1.
//
// Device wraps a gpucontext.DeviceProvider so a host embedding both a
// renderer and DOPPLER can share one physical device, mirroring the
// teacher's gg.SetDeviceProvider indirection.
type Device struct {
	mu sync.RWMutex

	provider gpucontext.DeviceProvider
	hal      hal.Device
	queue    hal.Queue
	caps     Capabilities

	lost    atomic.Bool
	lostErr error

	log *slog.Logger
}

// DeviceOptions configures AcquireDevice.
type DeviceOptions struct {
	// RequireF16 requests the shader-f16 extension; if unavailable and
	// required, AcquireDevice fails with ErrFeatureRejected.
	RequireF16 bool

	// RequireSubgroups requests subgroup operations.
	RequireSubgroups bool

	// Logger receives debug/warn events. Defaults to a nop logger.
	Logger *slog.Logger
}

// AcquireDevice acquires a GPU device through the given provider,
// queries its capabilities, and returns a ready-to-use Device.
//
// Failure modes per spec.md §4.1: no adapter, adapter rejected feature
// request, device lost (surfaced later via IsLost/LostError, not here).
func AcquireDevice(ctx context.Context, provider gpucontext.DeviceProvider, opts DeviceOptions) (*Device, error) {
	if provider == nil {
		return nil, NewConfigError("gpu: device provider is nil")
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	halProvider, ok := provider.(interface {
		HALDevice() (hal.Device, hal.Queue, error)
	})
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose a HAL device", ErrNoAdapter)
	}

	halDevice, halQueue, err := halProvider.HALDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}

	caps, err := queryCapabilities(halDevice)
	if err != nil {
		return nil, err
	}
	if opts.RequireF16 && !caps.HasF16 {
		return nil, fmt.Errorf("%w: shader-f16", ErrFeatureRejected)
	}
	if opts.RequireSubgroups && !caps.HasSubgroups {
		return nil, fmt.Errorf("%w: subgroups", ErrFeatureRejected)
	}

	d := &Device{
		provider: provider,
		hal:      halDevice,
		queue:    halQueue,
		caps:     caps,
		log:      log,
	}
	log.Debug("gpu: device acquired", "has_f16", caps.HasF16, "has_subgroups", caps.HasSubgroups)
	return d, nil
}

func queryCapabilities(d hal.Device) (Capabilities, error) {
	limiter, ok := d.(interface{ Limits() types.Limits })
	if !ok {
		return Capabilities{}, fmt.Errorf("%w: device does not expose limits", ErrNoAdapter)
	}
	lim := limiter.Limits()

	featurer, _ := d.(interface{ Features() types.Features })
	var feats types.Features
	if featurer != nil {
		feats = featurer.Features()
	}

	return Capabilities{
		HasF16:                        feats.Contains(types.FeatureShaderF16),
		HasSubgroups:                  feats.Contains(types.FeatureSubgroups),
		HasTimestampQuery:             feats.Contains(types.FeatureTimestampQuery),
		MaxComputeWorkgroupsPerDim:    lim.MaxComputeWorkgroupsPerDimension,
		MaxComputeWorkgroupStorageSize: lim.MaxComputeWorkgroupStorageSize,
	}, nil
}

// Capabilities returns the device's capability snapshot.
func (d *Device) Capabilities() Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.caps
}

// HAL returns the underlying hal.Device for kernel dispatch.
func (d *Device) HAL() hal.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hal
}

// Queue returns the underlying hal.Queue for submission.
func (d *Device) Queue() hal.Queue {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queue
}

// Logger returns the device's logger.
func (d *Device) Logger() *slog.Logger { return d.log }

// IsLost reports whether a device-lost signal has been observed.
func (d *Device) IsLost() bool { return d.lost.Load() }

// LostError returns the recorded device-lost error, if any.
func (d *Device) LostError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lostErr
}

// MarkLost records a device-lost signal. Idempotent. After this call,
// IsLost returns true and every subsequent operation on the device
// should fail fast with ErrDeviceLost; the pipeline is responsible for
// returning itself to an unusable state on observing it (spec.md §4.4
// "Device-loss recovery").
func (d *Device) MarkLost(cause error) {
	if d.lost.CompareAndSwap(false, true) {
		d.mu.Lock()
		if cause == nil {
			cause = ErrDeviceLost
		}
		d.lostErr = fmt.Errorf("%w: %v", ErrDeviceLost, cause)
		d.mu.Unlock()
		d.log.Warn("gpu: device lost", "cause", cause)
	}
}

// checkLost returns ErrDeviceLost (wrapped) if the device has been lost.
func (d *Device) checkLost() error {
	if d.IsLost() {
		return d.LostError()
	}
	return nil
}
