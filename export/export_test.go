package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/edgeplan/vision/segmentation"
)

func TestTextExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.txt")
	segments := []segmentation.LineSegment{
		{Start: r3.Vector{X: 1, Y: 2, Z: 3}, End: r3.Vector{X: 4, Y: 5, Z: 6}},
		{Start: r3.Vector{}, End: r3.Vector{Z: -1}, ClusterID: 1},
	}
	exp := NewTextExporter(path)
	// rerunning overwrites
	for i := 0; i < 2; i++ {
		test.That(t, exp.Export(context.Background(), segments, DefaultLayer), test.ShouldBeNil)
	}
	//nolint:gosec
	out, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual,
		"# layer lines color 255\n"+
			"1 2 3 4 5 6\n"+
			"0 0 0 0 0 -1\n")
}

func TestMemoryExporter(t *testing.T) {
	exp := &MemoryExporter{}
	test.That(t, exp.Last(), test.ShouldBeNil)
	segments := []segmentation.LineSegment{{End: r3.Vector{X: 1}}}
	test.That(t, exp.Export(context.Background(), segments, DefaultLayer), test.ShouldBeNil)
	segments[0].End.X = 2
	test.That(t, exp.Last()[0].End.X, test.ShouldEqual, 1)
	test.That(t, exp.Layers, test.ShouldResemble, []Layer{{Name: "lines", Color: 255}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, exp.Export(ctx, segments, DefaultLayer), test.ShouldNotBeNil)
}

func TestWriteSegmentsKeepsFullPrecision(t *testing.T) {
	var buf bytes.Buffer
	segments := []segmentation.LineSegment{{Start: r3.Vector{X: 0.0000123456789}, End: r3.Vector{Y: 1.25}}}
	test.That(t, WriteSegments(context.Background(), &buf, segments, DefaultLayer), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "# layer lines color 255\n1.23456789e-05 0 0 0 1.25 0\n")
}
