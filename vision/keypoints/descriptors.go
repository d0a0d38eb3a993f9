package keypoints

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// DescriptorKind tells which distance applies to a descriptor set.
type DescriptorKind int

const (
	// Binary descriptors are bit strings compared with the Hamming distance.
	Binary DescriptorKind = iota
	// Float descriptors are real vectors compared with the Euclidean distance.
	Float
)

func (k DescriptorKind) String() string {
	if k == Float {
		return "float"
	}
	return "binary"
}

// Descriptors is the descriptor list parallel to a KeyPoints list. Only the slice matching Kind is set.
type Descriptors struct {
	Kind   DescriptorKind
	Bits   [][]uint64
	Values [][]float64
}

// NewBinaryDescriptors wraps bit string descriptors.
func NewBinaryDescriptors(d [][]uint64) *Descriptors {
	return &Descriptors{Kind: Binary, Bits: d}
}

// NewFloatDescriptors wraps real valued descriptors.
func NewFloatDescriptors(d [][]float64) *Descriptors {
	return &Descriptors{Kind: Float, Values: d}
}

// Len returns the number of descriptors.
func (d *Descriptors) Len() int {
	if d == nil {
		return 0
	}
	if d.Kind == Float {
		return len(d.Values)
	}
	return len(d.Bits)
}

// Subset returns the descriptors at the given indices, in order.
func (d *Descriptors) Subset(indices []int) *Descriptors {
	out := &Descriptors{Kind: d.Kind}
	for _, i := range indices {
		if d.Kind == Float {
			out.Values = append(out.Values, d.Values[i])
		} else {
			out.Bits = append(out.Bits, d.Bits[i])
		}
	}
	return out
}

// HammingDistance computes the number of differing bits of two binary descriptors.
func HammingDistance(d1, d2 []uint64) (int, error) {
	if len(d1) != len(d2) {
		return 0, errors.New("descriptors must have same length")
	}
	dist := 0
	for i := range d1 {
		dist += bits.OnesCount64(d1[i] ^ d2[i])
	}
	return dist, nil
}

// EuclideanDistance computes the L2 distance of two float descriptors.
func EuclideanDistance(d1, d2 []float64) (float64, error) {
	if len(d1) != len(d2) {
		return 0, errors.New("descriptors must have same length")
	}
	sum := 0.
	for i := range d1 {
		diff := d1[i] - d2[i]
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}
