package tuning

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	rutils "go.viam.com/edgeplan/utils"
)

type redrawKey struct{}

func TestSession(t *testing.T) {
	var seen []Knobs
	var ctxValues []interface{}
	redraw := func(ctx context.Context, k Knobs) error {
		seen = append(seen, k)
		ctxValues = append(ctxValues, ctx.Value(redrawKey{}))
		return nil
	}
	s, err := NewSession(Knobs{Min: 100, Max: 200}, 0, redraw)
	test.That(t, err, test.ShouldBeNil)

	ctx := context.WithValue(context.Background(), redrawKey{}, "viewer")
	test.That(t, s.SetMin(ctx, 150), test.ShouldBeNil)
	test.That(t, s.SetMax(ctx, 1200), test.ShouldBeNil)
	test.That(t, s.Knobs(), test.ShouldResemble, Knobs{Min: 150, Max: 1200})
	test.That(t, seen, test.ShouldResemble, []Knobs{{Min: 150, Max: 200}, {Min: 150, Max: 1200}})
	test.That(t, ctxValues, test.ShouldResemble, []interface{}{"viewer", "viewer"})

	// min above max is rejected without redrawing
	err = s.SetMin(ctx, 1201)
	test.That(t, errors.Is(err, rutils.ErrConfiguration), test.ShouldBeTrue)
	err = s.Set(ctx, Knobs{Min: 300, Max: 200})
	test.That(t, errors.Is(err, rutils.ErrConfiguration), test.ShouldBeTrue)
	test.That(t, s.Knobs(), test.ShouldResemble, Knobs{Min: 150, Max: 1200})
	test.That(t, len(seen), test.ShouldEqual, 2)

	test.That(t, s.Refresh(ctx), test.ShouldBeNil)
	test.That(t, len(seen), test.ShouldEqual, 3)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	test.That(t, s.SetMax(cancelled, 1000), test.ShouldNotBeNil)
}

func TestNewSessionErrors(t *testing.T) {
	noop := func(context.Context, Knobs) error { return nil }
	_, err := NewSession(Knobs{Min: 5, Max: 1}, 10, noop)
	test.That(t, errors.Is(err, rutils.ErrConfiguration), test.ShouldBeTrue)
	_, err = NewSession(Knobs{Min: 0, Max: 11}, 10, noop)
	test.That(t, errors.Is(err, rutils.ErrConfiguration), test.ShouldBeTrue)
	_, err = NewSession(Knobs{}, 10, nil)
	test.That(t, errors.Is(err, rutils.ErrConfiguration), test.ShouldBeTrue)
}

func TestHistogramRedraw(t *testing.T) {
	labels := []uint8{0, 0, 10, 200, 255, 255}
	path := filepath.Join(t.TempDir(), "labels.png")
	inRange := -1
	s, err := NewSession(Knobs{Min: 200, Max: 255}, 255, HistogramRedraw(labels, path, func(n int) { inRange = n }))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Refresh(context.Background()), test.ShouldBeNil)
	test.That(t, inRange, test.ShouldEqual, 3)
	info, err := os.Stat(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	test.That(t, LabelHistogram(nil, Knobs{}, path), test.ShouldNotBeNil)
}
