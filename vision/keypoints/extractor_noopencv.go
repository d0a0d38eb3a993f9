//go:build !opencv

package keypoints

import (
	rutils "go.viam.com/edgeplan/utils"
)

func newAKAZEExtractor(cfg *AKAZEConfig) (Extractor, error) {
	return nil, rutils.NewConfigurationError("feature method %q needs a build with the opencv tag", MethodAKAZE)
}

func newSIFTExtractor(cfg *SIFTConfig) (Extractor, error) {
	return nil, rutils.NewConfigurationError("feature method %q needs a build with the opencv tag", MethodSIFT)
}
