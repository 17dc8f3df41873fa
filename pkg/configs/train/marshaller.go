package train

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTrainConfig reads and seals a training config file.
//
// IT WILL PANIC if any misconfiguration is found. See TrySeal.
func LoadTrainConfig(filepath string) (*TrainConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (*TrainConfig, error) {
	var marshalled TrainConfigMarshall
	if err := yaml.Unmarshal(conf, &marshalled); err != nil {
		return nil, err
	}
	return TrySeal[*TrainConfig](&marshalled), nil
}
