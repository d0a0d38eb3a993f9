package config

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	rutils "go.viam.com/edgeplan/utils"
)

// Read reads a config from the given file. Environment variables in the file are expanded
// before decoding.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, rutils.NewConfigurationError("cannot read config %q: %v", filePath, err)
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
// Fields left out keep their Default value. The result is validated.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.ConfigFilePath = originalPath
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Wrap(rutils.ErrConfiguration, "failed to decode Config from json: "+err.Error())
	}
	mode, err := ParseCaptureMode(string(cfg.Capture.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Capture.Mode = mode
	cfg.Accumulation = AccumulationPolicy(strings.ToLower(string(cfg.Accumulation)))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
