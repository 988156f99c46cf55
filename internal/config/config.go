package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"port"`
	APIKey   string `mapstructure:"api_key"`
	LogLevel string `mapstructure:"log_level"`

	// Document cache; empty disables it.
	DBPath    string `mapstructure:"db_path"`
	OutputDir string `mapstructure:"output_dir"`

	// Worker pool
	WorkerCount  int           `mapstructure:"worker_count"`
	MaxQueueSize int           `mapstructure:"max_queue_size"`
	JobTTL       time.Duration `mapstructure:"job_ttl"`

	// Pages processed concurrently within one document.
	PageWorkers int `mapstructure:"page_workers"`

	// Upload limits
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Chunk     ChunkConfig     `mapstructure:"chunk"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

// AnalyzerConfig holds the page classification thresholds.
type AnalyzerConfig struct {
	KeywordComplexMin         int     `mapstructure:"keyword_complex_min"`
	KeywordFinancialMin       int     `mapstructure:"keyword_financial_min"`
	TableBlockRatio           float64 `mapstructure:"table_block_ratio"`
	AlignedDistinctRatio      float64 `mapstructure:"aligned_distinct_ratio"`
	StructuredMinBlocks       int     `mapstructure:"structured_min_blocks"`
	StructuredMinFontVariance float64 `mapstructure:"structured_min_font_variance"`
	PlainTextMinChars         int     `mapstructure:"plain_text_min_chars"`
	LineSegmentsMin           int     `mapstructure:"line_segments_min"`
	DarkPixelLevel            int     `mapstructure:"dark_pixel_level"`
	RenderScale               float64 `mapstructure:"render_scale"`
	ComplexityDensityMin      float64 `mapstructure:"complexity_density_min"`
	ComplexityFontVarianceMin float64 `mapstructure:"complexity_font_variance_min"`
	ComplexityLineCountMin    int     `mapstructure:"complexity_line_count_min"`
	ComplexityHighScore       int     `mapstructure:"complexity_high_score"`
	ComplexityMediumScore     int     `mapstructure:"complexity_medium_score"`
}

type OCRConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Tesseract   string  `mapstructure:"tesseract"`
	Lang        string  `mapstructure:"lang"`
	TessdataDir string  `mapstructure:"tessdata_dir"`
	RenderScale float64 `mapstructure:"render_scale"`
}

type StrategyConfig struct {
	MinSuccessChars     int `mapstructure:"min_success_chars"`
	SectionMinChars     int `mapstructure:"section_min_chars"`
	HybridMinTotal      int `mapstructure:"hybrid_min_total"`
	RecognitionMinChars int `mapstructure:"recognition_min_chars"`
}

type ChunkConfig struct {
	Size int `mapstructure:"size"`
}

type RetrievalConfig struct {
	MaxFeatures   int     `mapstructure:"max_features"`
	TopK          int     `mapstructure:"top_k"`
	Threshold     float64 `mapstructure:"threshold"`
	Candidates    int     `mapstructure:"candidates"`
	FallbackTop   int     `mapstructure:"fallback_top"`
	ContextBudget int     `mapstructure:"context_budget"`
	TruncateMin   int     `mapstructure:"truncate_min"`
	Segmenter     string  `mapstructure:"segmenter"`
}

type LLMConfig struct {
	Host        string        `mapstructure:"host"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Temperature float64       `mapstructure:"temperature"`
}

func defaults() map[string]any {
	return map[string]any{
		"port":             "8090",
		"api_key":          "",
		"log_level":        "info",
		"db_path":          "",
		"output_dir":       "outputs",
		"worker_count":     2,
		"max_queue_size":   50,
		"job_ttl":          time.Hour,
		"page_workers":     1,
		"max_upload_bytes": int64(104857600), // 100MB

		"analyzer.keyword_complex_min":          5,
		"analyzer.keyword_financial_min":        2,
		"analyzer.table_block_ratio":            0.3,
		"analyzer.aligned_distinct_ratio":       0.8,
		"analyzer.structured_min_blocks":        5,
		"analyzer.structured_min_font_variance": 2.0,
		"analyzer.plain_text_min_chars":         100,
		"analyzer.line_segments_min":            10,
		"analyzer.dark_pixel_level":             128,
		"analyzer.render_scale":                 1.5,
		"analyzer.complexity_density_min":       10.0,
		"analyzer.complexity_font_variance_min": 5.0,
		"analyzer.complexity_line_count_min":    20,
		"analyzer.complexity_high_score":        6,
		"analyzer.complexity_medium_score":      3,

		"ocr.enabled":      true,
		"ocr.tesseract":    "tesseract",
		"ocr.lang":         "chi_tra+eng",
		"ocr.tessdata_dir": "",
		"ocr.render_scale": 3.0,

		"strategy.min_success_chars":     50,
		"strategy.section_min_chars":     100,
		"strategy.hybrid_min_total":      500,
		"strategy.recognition_min_chars": 100,

		"chunk.size": 500,

		"retrieval.max_features":   5000,
		"retrieval.top_k":          5,
		"retrieval.threshold":      0.1,
		"retrieval.candidates":     15,
		"retrieval.fallback_top":   10,
		"retrieval.context_budget": 15000,
		"retrieval.truncate_min":   200,
		"retrieval.segmenter":      "gse",

		"llm.host":        "http://localhost:11434",
		"llm.model":       "llama3:latest",
		"llm.timeout":     120 * time.Second,
		"llm.max_retries": 3,
		"llm.temperature": 0.3,
	}
}

// flagKeys maps short command-line flag names onto nested config keys.
var flagKeys = map[string]string{
	"budget":      "retrieval.context_budget",
	"top-k":       "retrieval.top_k",
	"threshold":   "retrieval.threshold",
	"chunk-size":  "chunk.size",
	"model":       "llm.model",
	"ollama-host": "llm.host",
	"tesseract":   "ocr.tesseract",
	"ocr":         "ocr.enabled",
	"db":          "db_path",
}

// Load resolves configuration from defaults, an optional YAML file, FINGEST_*
// environment variables and any command-line flags that map onto config keys.
// Precedence follows viper: flag > env > file > default.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	defs := defaults()
	for k, val := range defs {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("FINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("fingest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fingest")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
				if _, known := defs[key]; !known {
					return
				}
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.clamp()
	return cfg, nil
}

// clamp restores defaults for values that make no sense when zero or negative.
func (c *Config) clamp() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 2
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 50
	}
	if c.JobTTL <= 0 {
		c.JobTTL = time.Hour
	}
	if c.PageWorkers <= 0 {
		c.PageWorkers = 1
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 104857600
	}
	if c.Chunk.Size <= 0 {
		c.Chunk.Size = 500
	}
	if c.OCR.RenderScale < 3 {
		c.OCR.RenderScale = 3
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 3
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 120 * time.Second
	}
}

func (c Config) Validate() error {
	if c.Retrieval.ContextBudget <= 0 {
		return fmt.Errorf("retrieval.context_budget must be positive, got %d", c.Retrieval.ContextBudget)
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval.threshold must be within [0,1], got %g", c.Retrieval.Threshold)
	}
	if c.Retrieval.MaxFeatures <= 0 {
		return fmt.Errorf("retrieval.max_features must be positive, got %d", c.Retrieval.MaxFeatures)
	}
	switch c.Retrieval.Segmenter {
	case "gse", "simple":
	default:
		return fmt.Errorf("retrieval.segmenter must be gse or simple, got %q", c.Retrieval.Segmenter)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}

// ValidateServe adds the checks that only apply to the HTTP server.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("FINGEST_API_KEY is required")
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}
