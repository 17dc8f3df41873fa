package server

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadServerConfig reads and seals a server config file.
//
// IT WILL PANIC if any misconfiguration is found. See TrySeal.
func LoadServerConfig(filepath string) (*ServerConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (*ServerConfig, error) {
	var marshalled ServerConfigMarshall
	if err := yaml.Unmarshal(conf, &marshalled); err != nil {
		return nil, err
	}
	return TrySeal[*ServerConfig](&marshalled), nil
}
