package pointcloud

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	rutils "go.viam.com/edgeplan/utils"
)

// DefaultHeaderLines is the length of the header written by the upstream dense cloud exporter.
const DefaultHeaderLines = 15

// LabelField selects which whitespace separated field of a line holds the label.
type LabelField int

const (
	// LabelLast reads the label from the last field.
	LabelLast LabelField = iota
	// LabelSecondToLast reads the label from the field before the last one.
	LabelSecondToLast
)

// LabelFieldForMethod maps the upstream reconstruction method number to the label position.
// Methods 1 and 3 append an extra value after the label.
func LabelFieldForMethod(method int) LabelField {
	if method == 1 || method == 3 {
		return LabelSecondToLast
	}
	return LabelLast
}

// ClassifyOptions configures ClassifyFile.
type ClassifyOptions struct {
	Threshold   int
	HeaderLines int
	LabelField  LabelField
}

func (field LabelField) parse(line string) (float64, error) {
	fields := strings.Fields(line)
	idx := len(fields) - 1
	if field == LabelSecondToLast {
		idx--
	}
	if idx < 0 {
		return 0, rutils.NewDataError("not enough fields")
	}
	v, err := strconv.ParseFloat(fields[idx], 64)
	if err != nil {
		return 0, rutils.NewDataError("label %q is not a number", fields[idx])
	}
	return v, nil
}

// ClassifyFile copies the lines of src whose label is at least opts.Threshold verbatim into
// dst, after skipping the header. dst is truncated first so that reruns never duplicate
// lines. It returns the number of lines copied.
func ClassifyFile(src, dst string, opts ClassifyOptions) (count int, err error) {
	//nolint:gosec
	in, err := os.Open(src)
	if err != nil {
		return 0, rutils.NewDataError("cannot open point cloud %q: %v", src, err)
	}
	defer func() {
		err = multierr.Combine(err, in.Close())
	}()

	if err := rutils.TruncateFile(dst); err != nil {
		return 0, err
	}
	out, err := rutils.OpenAppend(dst)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(out)
	defer func() {
		err = multierr.Combine(err, w.Flush(), out.Close())
	}()

	err = scanBody(in, opts.HeaderLines, func(lineNo int, line string) error {
		label, err := opts.LabelField.parse(line)
		if err != nil {
			return rutils.NewDataError("%s line %d: %v", src, lineNo, err)
		}
		if label < float64(opts.Threshold) {
			return nil
		}
		count++
		_, err = w.WriteString(line + "\n")
		return err
	})
	return count, err
}
