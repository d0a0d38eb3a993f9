package pipeline

import (
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/edgeplan/pointcloud"
	"go.viam.com/edgeplan/vision/segmentation"
)

// Cluster file names in the output directory.
const (
	ClusterLabelsFile = "LinesLabels.txt"
	NoiseFile         = "noisepoints.txt"
	ClustersPLYFile   = "clusters.ply"
	ClustersLASFile   = "clusters.las"
)

// writeClusterFiles writes the labelled points, the noise points and the colored clusters.
func writeClusterFiles(dir string, positions []r3.Vector, labels []int) (err error) {
	clustered, err := os.Create(filepath.Join(dir, ClusterLabelsFile))
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		err = multierr.Combine(err, clustered.Close())
	}()
	noise, err := os.Create(filepath.Join(dir, NoiseFile))
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		err = multierr.Combine(err, noise.Close())
	}()
	if err := segmentation.WriteClusterLabels(clustered, noise, positions, labels); err != nil {
		return err
	}

	colored := pointcloud.ColorizeClusters(positions, labels)
	ply, err := os.Create(filepath.Join(dir, ClustersPLYFile))
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		err = multierr.Combine(err, ply.Close())
	}()
	if err := pointcloud.WritePLY(ply, colored); err != nil {
		return err
	}

	if len(colored) == 0 {
		return nil
	}
	cloud := pointcloud.NewWithPrealloc(len(colored))
	cloud.Append(colored...)
	return pointcloud.WriteToLASFile(cloud, filepath.Join(dir, ClustersLASFile))
}
