package config

import (
	"os"
	"time"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// ReadFile reads Params from a YAML or JSON document at path. The
// document must be a mapping from option name to value.
func ReadFile(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func Unmarshal(data []byte) (Params, error) {
	p := Params{}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "decoding parameters")
	}
	return p, nil
}

// Marshal renders p as YAML. Durations are written in their string
// form so the output can be read back with Unmarshal.
func Marshal(p Params) ([]byte, error) {
	out := make(map[string]interface{}, len(p))
	for name, value := range p {
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		out[name] = value
	}
	return yaml.Marshal(out)
}
