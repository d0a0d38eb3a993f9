package pointcloud

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/edgeplan/logging"
)

func TestLASRoundTrip(t *testing.T) {
	cloud := New()
	cloud.Append(
		Point{Position: r3.Vector{X: 1, Y: 2, Z: 3}, R: 255, G: 10, B: 0, Label: 255, PairID: 2},
		Point{Position: r3.Vector{X: -4, Y: 5.5, Z: 60}, R: 1, G: 2, B: 3, Label: 7, PairID: NoPair},
	)
	fn := filepath.Join(t.TempDir(), "merged.las")
	test.That(t, WriteToLASFile(cloud, fn), test.ShouldBeNil)

	read, err := NewFromLASFile(fn, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Size(), test.ShouldEqual, 2)
	for i := 0; i < 2; i++ {
		want, got := cloud.At(i), read.At(i)
		test.That(t, got.Position.X, test.ShouldAlmostEqual, want.Position.X, 1e-3)
		test.That(t, got.Position.Y, test.ShouldAlmostEqual, want.Position.Y, 1e-3)
		test.That(t, got.Position.Z, test.ShouldAlmostEqual, want.Position.Z, 1e-3)
		test.That(t, got.R, test.ShouldEqual, want.R)
		test.That(t, got.B, test.ShouldEqual, want.B)
		test.That(t, got.Label, test.ShouldEqual, want.Label)
		test.That(t, got.PairID, test.ShouldEqual, want.PairID)
	}
}

func TestWritePLY(t *testing.T) {
	pts := ColorizeClusters(
		[]r3.Vector{{X: 0}, {X: 1}, {X: 2}},
		[]int{0, 1, -1},
	)
	test.That(t, pts[0].Label, test.ShouldEqual, 0)
	test.That(t, pts[0], test.ShouldNotResemble, pts[1])
	r, g, b := NoiseColor.RGB255()
	test.That(t, []uint8{pts[2].R, pts[2].G, pts[2].B}, test.ShouldResemble, []uint8{r, g, b})

	var buf bytes.Buffer
	test.That(t, WritePLY(&buf, pts), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, lines[2], test.ShouldEqual, "element vertex 3")
	test.That(t, lines[10], test.ShouldEqual, "end_header")
	test.That(t, len(lines), test.ShouldEqual, 14)
	test.That(t, len(ClusterPalette(0)), test.ShouldEqual, 0)
}
