package pointcloud

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	rutils "go.viam.com/edgeplan/utils"
)

func TestTextRoundTrip(t *testing.T) {
	pts := []Point{
		{Position: r3.Vector{X: 1.5, Y: -2, Z: 300.25}, R: 1, G: 2, B: 3, Label: 255, PairID: 4},
		{Position: r3.Vector{X: 0, Y: 0, Z: 0}, Label: 0, PairID: 4},
	}
	var buf bytes.Buffer
	test.That(t, WriteText(&buf, pts), test.ShouldBeNil)
	test.That(t, strings.Split(buf.String(), "\n")[0], test.ShouldEqual, "1.5 -2 300.25 1 2 3 255")

	cloud, err := ReadText(&buf, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	test.That(t, cloud.At(0).Position, test.ShouldResemble, pts[0].Position)
	test.That(t, cloud.At(0).Label, test.ShouldEqual, 255)
	test.That(t, cloud.At(0).PairID, test.ShouldEqual, NoPair)

	md := cloud.MetaData()
	test.That(t, md.MaxZ, test.ShouldEqual, 300.25)
	test.That(t, md.MinY, test.ShouldEqual, -2)
}

func TestReadTextMalformed(t *testing.T) {
	_, err := ReadText(strings.NewReader("1 2 3 4 5 6 7\n1 2 3\n"), 0)
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")

	_, err = ParsePoint("1 2 3 4 5 6 256")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTextKeepsFullPrecision(t *testing.T) {
	pos := r3.Vector{X: 0.123456789012, Y: -1e-9, Z: 12345.000001}
	var buf bytes.Buffer
	test.That(t, WriteText(&buf, []Point{{Position: pos, Label: 255}}), test.ShouldBeNil)
	cloud, err := ReadText(&buf, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.At(0).Position, test.ShouldResemble, pos)
}

func TestReadCoordinates(t *testing.T) {
	in := "header\n1 2 3 0 0 1 10 20 30 255 7\n4 5 6 1 2 3 300\n\n7 8 9\n"
	cloud, err := ReadCoordinates(strings.NewReader(in), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 3)
	test.That(t, cloud.At(1).Position, test.ShouldResemble, r3.Vector{X: 4, Y: 5, Z: 6})
	test.That(t, cloud.At(2).PairID, test.ShouldEqual, NoPair)

	_, err = ReadCoordinates(strings.NewReader("1 2\n"), 0)
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 1")

	_, err = ReadCoordinates(strings.NewReader("1 2 3\n1 x 3\n"), 0)
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")
}
