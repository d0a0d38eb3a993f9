// Package export hands the fitted segments to a vector drawing writer.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/multierr"

	rutils "go.viam.com/edgeplan/utils"
	"go.viam.com/edgeplan/vision/segmentation"
)

// Layer is the drawing layer every segment of an export lands on.
type Layer struct {
	Name  string
	Color int
}

// DefaultLayer is the layer the building edges are drawn on.
var DefaultLayer = Layer{Name: "lines", Color: 255}

// An Exporter emits one line entity per segment on the given layer.
type Exporter interface {
	Export(ctx context.Context, segments []segmentation.LineSegment, layer Layer) error
}

type textExporter struct {
	path string
}

// NewTextExporter returns an Exporter writing `x1 y1 z1 x2 y2 z2` lines to path, the
// hand-off format of the external CAD writer. The layer is recorded in a leading comment.
func NewTextExporter(path string) Exporter {
	return &textExporter{path: path}
}

func (te *textExporter) Export(ctx context.Context, segments []segmentation.LineSegment, layer Layer) (err error) {
	//nolint:gosec
	f, err := os.Create(te.path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteSegments(ctx, f, segments, layer)
}

// WriteSegments writes the layer header followed by one line per segment.
func WriteSegments(ctx context.Context, out io.Writer, segments []segmentation.LineSegment, layer Layer) error {
	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(w, "# layer %s color %d\n", layer.Name, layer.Color); err != nil {
		return err
	}
	for _, s := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", rutils.FormatVector(s.Start), rutils.FormatVector(s.End)); err != nil {
			return err
		}
	}
	return w.Flush()
}

// MemoryExporter records the exports it receives.
type MemoryExporter struct {
	mu       sync.Mutex
	Layers   []Layer
	Segments [][]segmentation.LineSegment
}

// Export records a copy of the segments.
func (me *MemoryExporter) Export(ctx context.Context, segments []segmentation.LineSegment, layer Layer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	me.mu.Lock()
	defer me.mu.Unlock()
	me.Layers = append(me.Layers, layer)
	me.Segments = append(me.Segments, append([]segmentation.LineSegment(nil), segments...))
	return nil
}

// Last returns the segments of the last export.
func (me *MemoryExporter) Last() []segmentation.LineSegment {
	me.mu.Lock()
	defer me.mu.Unlock()
	if len(me.Segments) == 0 {
		return nil
	}
	return me.Segments[len(me.Segments)-1]
}
