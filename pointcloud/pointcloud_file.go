package pointcloud

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/edgeplan/logging"
)

const (
	maxPreciseFloat64 = float64(1 << 53)
	minPreciseFloat64 = -maxPreciseFloat64
	lasNoPairSource   = math.MaxUint16
)

// NewFromLASFile returns a point cloud from reading a LAS file written by WriteToLASFile. If
// any lossiness of points could occur from reading it in, it's reported but is not an error.
func NewFromLASFile(fn string, logger logging.Logger) (*Cloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	cloud := NewWithPrealloc(lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()

		x, y, z := data.X, data.Y, data.Z
		if x < minPreciseFloat64 || x > maxPreciseFloat64 ||
			y < minPreciseFloat64 || y > maxPreciseFloat64 ||
			z < minPreciseFloat64 || z > maxPreciseFloat64 {
			logger.Warnw("potential floating point lossiness for LAS point",
				"point", data, "range", fmt.Sprintf("[%f,%f]", minPreciseFloat64, maxPreciseFloat64))
		}

		pt := Point{
			Position: r3.Vector{X: x, Y: y, Z: z},
			Label:    data.UserData,
			PairID:   int(data.PointSourceID),
		}
		if data.PointSourceID == lasNoPairSource {
			pt.PairID = NoPair
		}
		if rgb := p.RgbData(); rgb != nil {
			pt.R = uint8(rgb.Red / 256)
			pt.G = uint8(rgb.Green / 256)
			pt.B = uint8(rgb.Blue / 256)
		}
		cloud.Append(pt)
	}
	return cloud, nil
}

// WriteToLASFile writes the cloud out to a colored LAS file. The label of each point is kept in
// its user data byte and the originating pair in its point source id.
func WriteToLASFile(cloud *Cloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: 2,
	}); err != nil {
		return
	}

	cloud.Iterate(func(_ int, p Point) bool {
		source := uint16(lasNoPairSource)
		if p.PairID >= 0 && p.PairID < lasNoPairSource {
			source = uint16(p.PairID)
		}
		pr0 := &lidario.PointRecord0{
			X: p.Position.X,
			Y: p.Position.Y,
			Z: p.Position.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			UserData:      p.Label,
			PointSourceID: source,
		}
		lp := &lidario.PointRecord2{
			PointRecord0: pr0,
			RGB: &lidario.RgbData{
				Red:   uint16(p.R) * 256,
				Green: uint16(p.G) * 256,
				Blue:  uint16(p.B) * 256,
			},
		}
		if lerr := lf.AddLasPoint(lp); lerr != nil {
			err = lerr
			return false
		}
		return true
	})
	return
}

const plyHeader = `ply
format ascii 1.0
element vertex %d
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
property uchar label
end_header
`

// WritePLY writes the points as an ascii PLY with vertex colours and labels.
func WritePLY(out io.Writer, pts []Point) error {
	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(w, plyHeader, len(pts)); err != nil {
		return err
	}
	for _, p := range pts {
		if _, err := w.WriteString(FormatPoint(p) + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// NoiseColor is the colour of points outside of every cluster.
var NoiseColor = colorful.Color{R: 0.5, G: 0.5, B: 0.5}

// ClusterPalette returns n visually distinct colours spread evenly around the HCL hue circle.
func ClusterPalette(n int) []colorful.Color {
	palette := make([]colorful.Color, n)
	for i := range palette {
		palette[i] = colorful.Hcl(360*float64(i)/float64(n), 0.7, 0.6).Clamped()
	}
	return palette
}

// ColorizeClusters returns one point per position, coloured by its cluster label. Negative labels
// are noise. The cluster label, modulo 256, is stored in the point label.
func ColorizeClusters(positions []r3.Vector, labels []int) []Point {
	numClusters := 0
	for _, l := range labels {
		if l+1 > numClusters {
			numClusters = l + 1
		}
	}
	palette := ClusterPalette(numClusters)
	out := make([]Point, len(positions))
	for i, pos := range positions {
		c := NoiseColor
		label := labels[i]
		if label >= 0 {
			c = palette[label]
		}
		r, g, b := c.RGB255()
		out[i] = Point{Position: pos, R: r, G: g, B: b, Label: uint8(label), PairID: NoPair}
	}
	return out
}
