package pointcloud

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	rutils "go.viam.com/edgeplan/utils"
)

// FormatPoint renders p as an `x y z r g b label` line without the trailing newline.
func FormatPoint(p Point) string {
	return fmt.Sprintf("%s %d %d %d %d", rutils.FormatVector(p.Position), p.R, p.G, p.B, p.Label)
}

// ParsePoint parses an `x y z r g b label` line. Extra trailing fields are ignored.
func ParsePoint(line string) (Point, error) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return Point{}, errors.Errorf("expected at least 7 fields, got %d", len(fields))
	}
	var coords [3]float64
	for i := range coords {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return Point{}, errors.Wrapf(err, "field %d", i+1)
		}
		coords[i] = v
	}
	var channels [4]uint8
	for i := range channels {
		v, err := strconv.ParseUint(fields[3+i], 10, 8)
		if err != nil {
			return Point{}, errors.Wrapf(err, "field %d", i+4)
		}
		channels[i] = uint8(v)
	}
	return Point{
		Position: r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]},
		R:        channels[0],
		G:        channels[1],
		B:        channels[2],
		Label:    channels[3],
		PairID:   NoPair,
	}, nil
}

// WriteText writes one `x y z r g b label` line per point.
func WriteText(out io.Writer, pts []Point) error {
	w := bufio.NewWriter(out)
	for _, p := range pts {
		if _, err := w.WriteString(FormatPoint(p) + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadText reads a point text resource after skipping headerLines lines. Blank lines are
// ignored; a malformed line is a data error carrying its line number.
func ReadText(in io.Reader, headerLines int) (*Cloud, error) {
	cloud := New()
	err := scanBody(in, headerLines, func(lineNo int, line string) error {
		p, err := ParsePoint(line)
		if err != nil {
			return rutils.NewDataError("line %d: %v", lineNo, err)
		}
		cloud.Append(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cloud, nil
}

// ReadCoordinates reads only the `x y z` prefix of every line after skipping headerLines
// lines. Any further fields (normals, colour, label) are ignored so that raw and labeled
// layouts alike can be consumed.
func ReadCoordinates(in io.Reader, headerLines int) (*Cloud, error) {
	cloud := New()
	err := scanBody(in, headerLines, func(lineNo int, line string) error {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return rutils.NewDataError("line %d: expected at least 3 fields, got %d", lineNo, len(fields))
		}
		var coords [3]float64
		for i := range coords {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return rutils.NewDataError("line %d: field %d: %v", lineNo, i+1, err)
			}
			coords[i] = v
		}
		cloud.Append(Point{Position: r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]}, PairID: NoPair})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cloud, nil
}

// scanBody calls fn with every non blank line after the header, numbering lines from 1.
func scanBody(in io.Reader, headerLines int, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= headerLines {
			continue
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
