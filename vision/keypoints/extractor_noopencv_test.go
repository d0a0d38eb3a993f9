//go:build !opencv

package keypoints

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	rutils "go.viam.com/edgeplan/utils"
)

func TestOpenCVMethodsUnavailable(t *testing.T) {
	for _, method := range []string{MethodAKAZE, MethodSIFT, "Sift"} {
		_, err := NewExtractor(method, nil)
		test.That(t, errors.Is(err, rutils.ErrConfiguration), test.ShouldBeTrue)
	}
}
