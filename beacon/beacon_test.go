package beacon

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wyfcoding/beaconrange/filter"
	"github.com/wyfcoding/beaconrange/propagation"
	"github.com/wyfcoding/beaconrange/xerrors"
)

const addr = "aa:bb:cc:dd:ee:ff"

func newReady(t *testing.T) *Beacon {
	t.Helper()
	return New(addr, -59, WithFilter(filter.DefaultKalmanFilter()), WithModel(propagation.Default()))
}

func TestSetRawSignalSmoothsEagerly(t *testing.T) {
	ctx := context.Background()
	b := newReady(t)
	if b.State() != StateEmpty {
		t.Fatalf("new beacon state = %v", b.State())
	}

	if err := b.SetRawSignal(ctx, -70); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateFiltered {
		t.Errorf("state after SetRawSignal = %v, want filtered", b.State())
	}
	s, ok := b.Smoothed()
	if !ok || s != -70 {
		t.Errorf("Smoothed() = %v, %v", s, ok)
	}

	if err := b.SetRawSignal(ctx, -65); err != nil {
		t.Fatal(err)
	}
	s, _ = b.Smoothed()
	if b.Raw() != -65 {
		t.Errorf("raw input must be kept separately, got %v", b.Raw())
	}
	if s <= -70 || s >= -65 {
		t.Errorf("smoothed %v should lie strictly between -70 and -65", s)
	}
}

func TestDistanceCachesAndRecomputes(t *testing.T) {
	ctx := context.Background()
	b := newReady(t)
	_ = b.SetRawSignal(ctx, -70)

	d1, err := b.Distance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.State() != StateReady {
		t.Errorf("state after Distance = %v", b.State())
	}
	want := propagation.Default().Distance(-70, -59)
	if d1 != want {
		t.Errorf("distance = %v, want %v", d1, want)
	}

	// 重复读取不会再次驱动滤波器
	d2, _ := b.Distance(ctx)
	if d2 != d1 {
		t.Errorf("cached distance changed: %v -> %v", d1, d2)
	}

	_ = b.SetRawSignal(ctx, -80)
	if b.State() != StateFiltered {
		t.Errorf("new sample must invalidate the distance, state = %v", b.State())
	}
	d3, _ := b.Distance(ctx)
	if d3 == d1 {
		t.Errorf("distance not recomputed after new sample")
	}
}

func TestOrderSensitivity(t *testing.T) {
	ctx := context.Background()
	run := func(samples []float64) []float64 {
		b := newReady(t)
		var out []float64
		for _, s := range samples {
			if err := b.SetRawSignal(ctx, s); err != nil {
				t.Fatal(err)
			}
			d, err := b.Distance(ctx)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, d)
		}
		return out
	}

	a := run([]float64{-70, -65, -80})
	p := run([]float64{-65, -70, -80})
	for i := range a {
		if a[i] == p[i] {
			t.Errorf("distance %d identical (%v) for permuted input", i, a[i])
		}
	}
}

func TestUnconfiguredDependencies(t *testing.T) {
	ctx := context.Background()

	noModel := New(addr, -59, WithFilter(filter.DefaultKalmanFilter()))
	if err := noModel.SetRawSignal(ctx, -70); err != nil {
		t.Fatalf("smoothing needs only the filter: %v", err)
	}
	d, err := noModel.Distance(ctx)
	if !errors.Is(err, ErrModelMissing) || !xerrors.IsType(err, xerrors.ErrConfiguration) {
		t.Errorf("expected configuration error for missing model, got %v (d=%v)", err, d)
	}

	noFilter := New(addr, -59, WithModel(propagation.Default()))
	err = noFilter.SetRawSignal(ctx, -70)
	if !errors.Is(err, ErrFilterMissing) || !xerrors.IsType(err, xerrors.ErrConfiguration) {
		t.Errorf("expected configuration error for missing filter, got %v", err)
	}
	if noFilter.State() != StateStale || noFilter.Raw() != -70 {
		t.Errorf("raw value should be kept as stale, state=%v raw=%v", noFilter.State(), noFilter.Raw())
	}
	if _, err := noFilter.Distance(ctx); !errors.Is(err, ErrFilterMissing) {
		t.Errorf("Distance without filter: %v", err)
	}

	bare := New(addr, -59)
	if _, err := bare.Distance(ctx); !xerrors.IsType(err, xerrors.ErrConfiguration) {
		t.Errorf("bare beacon must not produce a numeric default, got %v", err)
	}
}

func TestLateAttachment(t *testing.T) {
	ctx := context.Background()
	b := New(addr, -59, WithFilter(filter.DefaultKalmanFilter()))
	_ = b.SetRawSignal(ctx, -70)

	b.AttachModel(propagation.Default())
	d, err := b.Distance(ctx)
	if err != nil {
		t.Fatal(err)
	}

	b.AttachModel(propagation.NewModel(1, 1, 0))
	if b.State() != StateFiltered {
		t.Errorf("new model must invalidate the cached distance, state = %v", b.State())
	}
	d2, _ := b.Distance(ctx)
	if d2 == d || math.Abs(d2-70.0/59.0) > 1e-12 {
		t.Errorf("distance with linear model = %v", d2)
	}

	b.AttachFilter(filter.DefaultKalmanFilter())
	if b.State() != StateStale {
		t.Errorf("new filter must invalidate the smoothed value, state = %v", b.State())
	}
	if _, ok := b.Smoothed(); ok {
		t.Errorf("smoothed value must not be trusted while stale")
	}
}

func TestSeededSignalSmoothsLazily(t *testing.T) {
	ctx := context.Background()
	b := New(addr, -59, WithSignal(-75), WithFilter(filter.DefaultKalmanFilter()), WithModel(propagation.Default()))
	if b.State() != StateStale {
		t.Fatalf("seeded beacon state = %v", b.State())
	}
	d, err := b.Distance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d != propagation.Default().Distance(-75, -59) {
		t.Errorf("lazy distance = %v", d)
	}
	if s, ok := b.Smoothed(); !ok || s != -75 {
		t.Errorf("Smoothed() = %v, %v", s, ok)
	}
}

func TestNoSignalYet(t *testing.T) {
	_, err := newReady(t).Distance(context.Background())
	if !errors.Is(err, ErrNoSignal) {
		t.Errorf("expected ErrNoSignal, got %v", err)
	}
}

func TestZeroSignalYieldsSentinel(t *testing.T) {
	ctx := context.Background()
	b := newReady(t)
	_ = b.SetRawSignal(ctx, 0)
	d, err := b.Distance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !propagation.IsUnknown(d) {
		t.Errorf("zero signal distance = %v, want sentinel", d)
	}
}

func TestNonFiniteSignalRejected(t *testing.T) {
	ctx := context.Background()
	b := newReady(t)
	err := b.SetRawSignal(ctx, math.NaN())
	if !errors.Is(err, filter.ErrNonFinite) || !xerrors.IsType(err, xerrors.ErrInvalidArg) {
		t.Errorf("expected non-finite rejection, got %v", err)
	}
	if b.State() != StateStale {
		t.Errorf("failed smoothing must leave the beacon stale, got %v", b.State())
	}

	if err := b.SetRawSignal(ctx, -70); err != nil {
		t.Fatalf("beacon should recover with a finite sample: %v", err)
	}
	if s, _ := b.Smoothed(); s != -70 {
		t.Errorf("filter should treat -70 as its first sample, got %v", s)
	}
}
