package train

import (
	"strconv"

	"github.com/credfab/credfab/pkg/utils/pointer"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/train.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// TrainConfigMarshall is the mutable, marshalling counterpart of
// TrainConfig. Seal it with TrySeal before use.
type TrainConfigMarshall struct {
	Data       *DataConfigMarshall        `yaml:"data"`
	Candidates []*CandidateConfigMarshall `yaml:"candidates"`
	Selection  *SelectionConfigMarshall   `yaml:"selection,omitempty"`
	Output     *OutputConfigMarshall      `yaml:"output"`
	Workers    int                        `yaml:"workers,omitempty"`
}

var _ Marshalled[*TrainConfig] = &TrainConfigMarshall{}

func (t *TrainConfigMarshall) trySeal(path string) *TrainConfig {
	if len(t.Candidates) == 0 {
		panic(path + ".candidates is required")
	}
	candidates := make([]*CandidateConfig, 0, len(t.Candidates))
	for i, c := range t.Candidates {
		candidates = append(candidates, nonnil(c, path+".candidates").trySeal(
			path+".candidates["+strconv.Itoa(i)+"]",
		))
	}

	selection := t.Selection
	if selection == nil {
		selection = &SelectionConfigMarshall{}
	}
	workers := t.Workers
	if workers <= 0 {
		workers = 1
	}

	return &TrainConfig{
		data:       nonnil(t.Data, path+".data").trySeal(path + ".data"),
		candidates: candidates,
		selection:  selection.trySeal(path + ".selection"),
		output:     nonnil(t.Output, path+".output").trySeal(path + ".output"),
		workers:    workers,
	}
}

type DataConfigMarshall struct {
	CSV   string               `yaml:"csv"`
	Label string               `yaml:"label"`
	Seed  int64                `yaml:"seed,omitempty"`
	Floor float64              `yaml:"floor,omitempty"`
	Split *SplitConfigMarshall `yaml:"split,omitempty"`
}

func (d *DataConfigMarshall) trySeal(path string) *DataConfig {
	seed := d.Seed
	if seed == 0 {
		seed = 42
	}
	floor := d.Floor
	if floor == 0 {
		floor = 0.05
	}
	var split *SplitConfig
	if d.Split == nil {
		split = &SplitConfig{train: 0.7, validation: 0.15, test: 0.15}
	} else {
		split = d.Split.trySeal(path + ".split")
	}

	return &DataConfig{
		csv:   required(d.CSV, path+".csv"),
		label: required(d.Label, path+".label"),
		seed:  seed,
		floor: floor,
		split: split,
	}
}

type SplitConfigMarshall struct {
	Train      float64 `yaml:"train"`
	Validation float64 `yaml:"validation"`
	Test       float64 `yaml:"test"`
}

func (s *SplitConfigMarshall) trySeal(path string) *SplitConfig {
	return &SplitConfig{
		train:      required(s.Train, path+".train"),
		validation: required(s.Validation, path+".validation"),
		test:       required(s.Test, path+".test"),
	}
}

type CandidateConfigMarshall struct {
	Model string              `yaml:"model"`
	Grid  map[string][]string `yaml:"grid,omitempty"`
}

func (c *CandidateConfigMarshall) trySeal(path string) *CandidateConfig {
	grid := c.Grid
	if grid == nil {
		grid = map[string][]string{}
	}
	return &CandidateConfig{
		model: required(c.Model, path+".model"),
		grid:  grid,
	}
}

type SelectionConfigMarshall struct {
	Metric    string   `yaml:"metric,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
}

func (s *SelectionConfigMarshall) trySeal(path string) *SelectionConfig {
	metric := s.Metric
	if metric == "" {
		metric = "auc"
	}
	threshold := 0.5
	if s.Threshold != nil {
		threshold = pointer.Deref(s.Threshold)
	}
	if threshold <= 0 || 1 <= threshold {
		panic(path + ".threshold must be within (0, 1)")
	}
	return &SelectionConfig{metric: metric, threshold: threshold}
}

type OutputConfigMarshall struct {
	StoreRoot string `yaml:"storeRoot"`
	Manifest  string `yaml:"manifest"`
	Database  string `yaml:"database,omitempty"`
}

func (o *OutputConfigMarshall) trySeal(path string) *OutputConfig {
	return &OutputConfig{
		storeRoot: required(o.StoreRoot, path+".storeRoot"),
		manifest:  required(o.Manifest, path+".manifest"),
		database:  o.Database,
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
