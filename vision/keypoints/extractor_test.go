package keypoints

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	rutils "go.viam.com/edgeplan/utils"
)

func TestNewExtractorAttributes(t *testing.T) {
	ext, err := NewExtractor("orb", map[string]interface{}{
		"max_features": 1000.0,
		"fast":         map[string]interface{}{"threshold": 35},
	})
	test.That(t, err, test.ShouldBeNil)
	orb, ok := ext.(*orbExtractor)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, orb.cfg.MaxFeatures, test.ShouldEqual, 1000)
	test.That(t, orb.cfg.FastConf.Threshold, test.ShouldEqual, 35)
	test.That(t, orb.cfg.FastConf.NMatchesCircle, test.ShouldEqual, 9)
	test.That(t, orb.cfg.BRIEFConf.N, test.ShouldEqual, 256)
}

func TestNewExtractorErrors(t *testing.T) {
	for _, tc := range []struct {
		method string
		attrs  map[string]interface{}
	}{
		{"harris", nil},
		{"surf", nil},
		{"orb", map[string]interface{}{"not_a_knob": 1}},
		{"orb", map[string]interface{}{"n_layers": 0}},
		{"orb", map[string]interface{}{"brief": map[string]interface{}{"n": 100}}},
		{"sift", map[string]interface{}{"surf_hessian_threshold": 1}},
	} {
		_, err := NewExtractor(tc.method, tc.attrs)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, rutils.ErrConfiguration), test.ShouldBeTrue)
	}
}
