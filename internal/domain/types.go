package domain

// DeviceSelector is the user-requested compute device.
type DeviceSelector string

const (
	DeviceAuto DeviceSelector = "auto"
	DeviceCPU  DeviceSelector = "cpu"
	DeviceCUDA DeviceSelector = "cuda"
)

// Precision is the numeric compute mode bound to a loaded model.
type Precision string

const (
	PrecisionFloat16 Precision = "float16"
	PrecisionInt8    Precision = "int8"
)

// Policy selects how the worker drives the model over an audio file.
type Policy string

const (
	// PolicyChunked splits audio into fixed windows processed sequentially.
	PolicyChunked Policy = "chunked"
	// PolicyBatched runs one batched call with an OOM retry, optionally aligned.
	PolicyBatched Policy = "batched"
)

// Phase tags progress events emitted by background tasks.
type Phase string

const (
	PhaseLoading      Phase = "loading"
	PhaseTranscribing Phase = "transcribing"
	PhaseAligning     Phase = "aligning"
	PhaseComplete     Phase = "complete"
	PhaseFailed       Phase = "failed"
)

// Segment is one transcribed span. Start and End are seconds from the audio
// origin and are only meaningful when Aligned is true.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Aligned bool    `json:"aligned"`
}

// Transcription is the immutable result of one worker run. A new run
// supersedes the previous result wholesale.
type Transcription struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
	Text     string    `json:"text"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	Device        DeviceSelector `yaml:"device" json:"device"`
	Policy        Policy         `yaml:"policy" json:"policy"`
	Alignment     bool           `yaml:"alignment" json:"alignment"`
	Language      string         `yaml:"language" json:"language"`
	ModelID       string         `yaml:"modelId" json:"modelId"`
	WindowSeconds int            `yaml:"windowSeconds" json:"windowSeconds"`
	BatchSize     int            `yaml:"batchSize" json:"batchSize"`
	Backend       string         `yaml:"backend" json:"backend"`
	CacheDir      string         `yaml:"cacheDir" json:"cacheDir"`
	OutputDir     string         `yaml:"outputDir" json:"outputDir"`
	LogFile       string         `yaml:"logFile" json:"logFile"`
}
