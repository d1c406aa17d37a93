// Package fleet dispatches configuration to multiple devices with bounded
// parallelism and per-device failure isolation.
package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/device"
	"github.com/fabricfleet/portctl/pkg/util"
)

// Defaults match the original deployment (ten device workers, generous
// per-device budget).
const (
	DefaultConcurrency      = 10
	DefaultPerDeviceTimeout = 60 * time.Second
)

// Target pairs a device with the artifact to apply to it.
type Target struct {
	Device   string
	Artifact *change.Artifact
}

// Result is the outcome for one target device.
type Result struct {
	Device   string        `json:"device"`
	Success  bool          `json:"success"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Executor fans out applies across devices. It is built once and shared
// across requests so the concurrency bound holds fleet-wide, not
// per-request.
type Executor struct {
	exec        device.Executor
	sem         chan struct{}
	perDeviceTO time.Duration
}

// NewExecutor creates a fleet executor over the given device transport.
// Non-positive settings fall back to the defaults.
func NewExecutor(exec device.Executor, concurrency int, perDeviceTimeout time.Duration) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if perDeviceTimeout <= 0 {
		perDeviceTimeout = DefaultPerDeviceTimeout
	}
	return &Executor{
		exec:        exec,
		sem:         make(chan struct{}, concurrency),
		perDeviceTO: perDeviceTimeout,
	}
}

// Apply pushes each target's artifact to its device. One result per target;
// a slow or failing device never aborts its siblings. Result order is not
// submission order — index by Device.
func (e *Executor) Apply(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	var wg sync.WaitGroup

	for i, tgt := range targets {
		wg.Add(1)
		go func(slot int, tgt Target) {
			defer wg.Done()
			results[slot] = e.applyOne(ctx, tgt)
		}(i, tgt)
	}
	wg.Wait()

	return results
}

func (e *Executor) applyOne(ctx context.Context, tgt Target) Result {
	start := time.Now()

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return Result{Device: tgt.Device, Err: ctx.Err().Error(), Duration: time.Since(start)}
	}

	applyCtx, cancel := context.WithTimeout(ctx, e.perDeviceTO)
	defer cancel()

	err := e.exec.ApplyCommands(applyCtx, tgt.Device, tgt.Artifact.Commands)
	if errors.Is(err, context.DeadlineExceeded) {
		err = util.ErrTimeout
	}

	res := Result{
		Device:   tgt.Device,
		Success:  err == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Err = err.Error()
		util.WithDevice(tgt.Device).Warnf("apply failed after %s: %v", res.Duration.Round(time.Millisecond), err)
	} else {
		util.WithDevice(tgt.Device).Infof("applied %d command lines in %s",
			len(tgt.Artifact.Commands), res.Duration.Round(time.Millisecond))
	}
	return res
}

// ByDevice indexes results by device identifier.
func ByDevice(results []Result) map[string]Result {
	m := make(map[string]Result, len(results))
	for _, r := range results {
		m[r.Device] = r
	}
	return m
}

// AllSucceeded reports whether every result succeeded.
func AllSucceeded(results []Result) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}
