// Package segmentation groups triangulated edge points by density and fits one line segment per group.
package segmentation

import (
	"sort"

	"github.com/golang/geo/r3"
)

// Noise is the cluster label of points that belong to no cluster.
const Noise = -1

// Cluster is a group of point indices sharing a label >= 0.
type Cluster struct {
	ID      int
	Indices []int
}

// Size returns the number of points in the cluster.
func (c Cluster) Size() int {
	return len(c.Indices)
}

// Points returns the positions of the cluster members, in index order.
func (c Cluster) Points(points []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(c.Indices))
	for i, idx := range c.Indices {
		out[i] = points[idx]
	}
	return out
}

// GroupClusters turns a label per point into clusters ordered by ID. Noise points are left out.
func GroupClusters(labels []int) []Cluster {
	byID := make(map[int][]int)
	for i, l := range labels {
		if l == Noise {
			continue
		}
		byID[l] = append(byID[l], i)
	}
	clusters := make([]Cluster, 0, len(byID))
	for id, indices := range byID {
		clusters = append(clusters, Cluster{ID: id, Indices: indices})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	return clusters
}

// NoiseIndices returns the indices of the points labelled as noise.
func NoiseIndices(labels []int) []int {
	var out []int
	for i, l := range labels {
		if l == Noise {
			out = append(out, i)
		}
	}
	return out
}
