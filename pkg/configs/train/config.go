package train

// TrainConfig is the sealed, read-only configuration of one training cycle.
//
// To get a TrainConfig instance, use `TrainConfigMarshall.TrySeal()` .
type TrainConfig struct {
	data       *DataConfig
	candidates []*CandidateConfig
	selection  *SelectionConfig
	output     *OutputConfig
	workers    int
}

func (c *TrainConfig) Data() *DataConfig {
	return c.data
}

func (c *TrainConfig) Candidates() []*CandidateConfig {
	return c.candidates
}

func (c *TrainConfig) Selection() *SelectionConfig {
	return c.selection
}

func (c *TrainConfig) Output() *OutputConfig {
	return c.output
}

// How many candidates may train concurrently.
func (c *TrainConfig) Workers() int {
	return c.workers
}

// DataConfig locates and describes the training dataset.
type DataConfig struct {
	csv   string
	label string
	seed  int64
	floor float64
	split *SplitConfig
}

// Path of the CSV file holding raw records.
func (d *DataConfig) CSV() string {
	return d.csv
}

// Raw column holding the 0/1 label.
func (d *DataConfig) Label() string {
	return d.label
}

// Shuffle seed. Fixed so partition membership is reproducible.
func (d *DataConfig) Seed() int64 {
	return d.seed
}

// Minimum positive-class rate in the training split before a data-quality
// warning is raised.
func (d *DataConfig) Floor() float64 {
	return d.floor
}

func (d *DataConfig) Split() *SplitConfig {
	return d.split
}

type SplitConfig struct {
	train      float64
	validation float64
	test       float64
}

func (s *SplitConfig) Train() float64 {
	return s.train
}

func (s *SplitConfig) Validation() float64 {
	return s.validation
}

func (s *SplitConfig) Test() float64 {
	return s.test
}

// CandidateConfig is one model family with its hyperparameter grid.
type CandidateConfig struct {
	model string
	grid  map[string][]string
}

func (c *CandidateConfig) Model() string {
	return c.model
}

func (c *CandidateConfig) Grid() map[string][]string {
	return c.grid
}

// SelectionConfig fixes how the winner is picked and how it decides.
type SelectionConfig struct {
	metric    string
	threshold float64
}

// Validation metric ranking completed runs. default = "auc"
func (s *SelectionConfig) Metric() string {
	return s.metric
}

// Decision threshold frozen into the published bundle. default = 0.5
func (s *SelectionConfig) Threshold() float64 {
	return s.threshold
}

// OutputConfig says where the cycle publishes.
type OutputConfig struct {
	storeRoot string
	manifest  string
	database  string
}

// Root directory of the content-addressed artifact store.
func (o *OutputConfig) StoreRoot() string {
	return o.storeRoot
}

// Path the bundle manifest is written to, atomically, as the last step.
func (o *OutputConfig) Manifest() string {
	return o.manifest
}

// Connection string for the run-tracking database. Empty means in-memory
// tracking only.
func (o *OutputConfig) Database() string {
	return o.database
}
