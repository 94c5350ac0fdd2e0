package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Stockflow StockflowConfig `yaml:"stockflow"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Paths     PathsConfig     `yaml:"paths"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Writer    WriterConfig    `yaml:"writer"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type StockflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type PipelineConfig struct {
	MaxWorkers    int           `yaml:"max_workers"`
	ReadWorkers   int           `yaml:"read_workers"`
	StageTimeout  time.Duration `yaml:"stage_timeout"`
	ReportRuntime bool          `yaml:"report_runtime"`
}

// PathsConfig holds the logical table locations inside the store.
type PathsConfig struct {
	Raw          string `yaml:"raw"`
	Cleaned      string `yaml:"cleaned"`
	Aggregates   string `yaml:"aggregates"`
	Analysis     string `yaml:"analysis"`
	Clusters     string `yaml:"clusters"`
	Insights     string `yaml:"insights"`
	MirrorSuffix string `yaml:"mirror_suffix"`
}

// AnalysisConfig exposes the window sizes and thresholds of the technical
// analysis job. The defaults are the documented values.
type AnalysisConfig struct {
	// MAWindows back the ma_5, ma_10, ma_20 and ma_50 columns in order.
	MAWindows          []int   `yaml:"ma_windows"`
	RSIWindow          int     `yaml:"rsi_window"`
	RSIOversold        float64 `yaml:"rsi_oversold"`
	RSIOverbought      float64 `yaml:"rsi_overbought"`
	BollingerWindow    int     `yaml:"bollinger_window"`
	BollingerK         float64 `yaml:"bollinger_k"`
	MACDFast           int     `yaml:"macd_fast"`
	MACDSlow           int     `yaml:"macd_slow"`
	VolumeWindow       int     `yaml:"volume_window"`
	VolumeHighRatio    float64 `yaml:"volume_high_ratio"`
	VolumeLowRatio     float64 `yaml:"volume_low_ratio"`
	VolumeZScore       float64 `yaml:"volume_zscore"`
	PriceChangePct     float64 `yaml:"price_change_pct"`
	OpeningGapPct      float64 `yaml:"opening_gap_pct"`
	Clusters           int     `yaml:"clusters"`
	ClusterSeed        uint64  `yaml:"cluster_seed"`
	ClusterMaxIter     int     `yaml:"cluster_max_iter"`
	ClusterTolerance   float64 `yaml:"cluster_tolerance"`
	InsightsTopN       int     `yaml:"insights_top_n"`
	InsightsAnomalyCap int     `yaml:"insights_anomaly_cap"`
}

type WriterConfig struct {
	Compression  string `yaml:"compression"`
	RowGroupSize int64  `yaml:"row_group_size"`
	CSVMirror    bool   `yaml:"csv_mirror"`
}

type StorageConfig struct {
	Backend string        `yaml:"backend"`
	Local   LocalConfig   `yaml:"local"`
	S3      S3Config      `yaml:"s3"`
	Timeout time.Duration `yaml:"timeout"`
}

type LocalConfig struct {
	Root string `yaml:"root"`
}

type S3Config struct {
	Bucket            string  `yaml:"bucket"`
	Prefix            string  `yaml:"prefix"`
	Region            string  `yaml:"region"`
	Endpoint          string  `yaml:"endpoint"`
	PathStyle         bool    `yaml:"path_style"`
	AccessKeyID       string  `yaml:"access_key_id"`
	SecretAccessKey   string  `yaml:"secret_access_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type CacheConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

type DatabaseConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	BatchSize    int    `yaml:"batch_size"`
}

type MetricsConfig struct {
	CloudWatch  CloudWatchConfig  `yaml:"cloudwatch"`
	Pushgateway PushgatewayConfig `yaml:"pushgateway"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type PushgatewayConfig struct {
	URL string `yaml:"url"`
	Job string `yaml:"job"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns a configuration populated with the documented defaults.
// LoadConfig overlays the YAML file on top of it.
func Default() Config {
	return Config{
		Stockflow: StockflowConfig{Name: "stockflow", Version: "dev"},
		Pipeline: PipelineConfig{
			MaxWorkers:   4,
			ReadWorkers:  8,
			StageTimeout: 30 * time.Minute,
		},
		Paths: PathsConfig{
			Raw:          "raw",
			Cleaned:      "processed/daily_stocks",
			Aggregates:   "processed/stock_aggregations",
			Analysis:     "analytics/technical_analysis",
			Clusters:     "analytics/stock_clusters",
			Insights:     "analytics/insights",
			MirrorSuffix: "_csv",
		},
		Analysis: AnalysisConfig{
			MAWindows:          []int{5, 10, 20, 50},
			RSIWindow:          14,
			RSIOversold:        30,
			RSIOverbought:      70,
			BollingerWindow:    20,
			BollingerK:         2,
			MACDFast:           12,
			MACDSlow:           26,
			VolumeWindow:       10,
			VolumeHighRatio:    2,
			VolumeLowRatio:     0.5,
			VolumeZScore:       3,
			PriceChangePct:     10,
			OpeningGapPct:      5,
			Clusters:           5,
			ClusterSeed:        42,
			ClusterMaxIter:     20,
			ClusterTolerance:   1e-4,
			InsightsTopN:       10,
			InsightsAnomalyCap: 20,
		},
		Writer: WriterConfig{
			Compression:  "snappy",
			RowGroupSize: 128 * 1024 * 1024,
			CSVMirror:    true,
		},
		Storage: StorageConfig{
			Backend: "local",
			Local:   LocalConfig{Root: "data/stock_data"},
			S3:      S3Config{RequestsPerSecond: 50, Burst: 10},
			Timeout: 2 * time.Minute,
		},
		Cache: CacheConfig{Redis: RedisConfig{
			TTL:       24 * time.Hour,
			KeyPrefix: "stockflow",
		}},
		Database: DatabaseConfig{MaxOpenConns: 5, BatchSize: 500},
		Metrics: MetricsConfig{
			CloudWatch:  CloudWatchConfig{Namespace: "StockFlow"},
			Pushgateway: PushgatewayConfig{Job: "stockflow"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	applyEnvOverrides(&config)

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("STOCKFLOW_STORAGE_ROOT"); v != "" {
		config.Storage.Local.Root = strings.TrimSpace(v)
	}

	if config.Storage.Backend == "s3" {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Cache.Redis.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Cache.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.Database.DSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		config.Metrics.Pushgateway.URL = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Stockflow.Name == "" {
		return fmt.Errorf("stockflow.name is required")
	}
	if cfg.Stockflow.Version == "" {
		return fmt.Errorf("stockflow.version is required")
	}

	if cfg.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("pipeline.max_workers must be greater than 0")
	}
	if cfg.Pipeline.ReadWorkers <= 0 {
		return fmt.Errorf("pipeline.read_workers must be greater than 0")
	}

	if err := validatePaths(&cfg.Paths); err != nil {
		return err
	}

	if err := validateAnalysis(&cfg.Analysis); err != nil {
		return err
	}

	switch strings.ToLower(cfg.Writer.Compression) {
	case "", "none", "snappy", "gzip":
	default:
		return fmt.Errorf("writer.compression '%s' is not supported", cfg.Writer.Compression)
	}

	switch cfg.Storage.Backend {
	case "local":
		if strings.TrimSpace(cfg.Storage.Local.Root) == "" {
			return fmt.Errorf("storage.local.root is required for the local backend")
		}
		if env := AppEnvironment(); IsProductionLike(env) {
			return fmt.Errorf("storage.backend local is not allowed in %s", env)
		}
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required for the s3 backend")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
		if (cfg.Storage.S3.AccessKeyID == "") != (cfg.Storage.S3.SecretAccessKey == "") {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("storage.backend '%s' must be local or s3", cfg.Storage.Backend)
	}

	if cfg.Cache.Redis.Enabled && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when redis is enabled")
	}
	if cfg.Database.Enabled && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when the database export is enabled")
	}

	return nil
}

// validatePaths rejects layouts where one table overwrite could remove
// another table's objects.
func validatePaths(p *PathsConfig) error {
	if strings.TrimSpace(p.MirrorSuffix) == "" {
		return fmt.Errorf("paths.mirror_suffix is required")
	}
	if strings.Contains(p.MirrorSuffix, "/") {
		return fmt.Errorf("paths.mirror_suffix must not contain '/'")
	}

	type table struct{ name, path string }
	tables := []table{
		{"paths.raw", p.Raw},
		{"paths.cleaned", p.Cleaned},
		{"paths.aggregates", p.Aggregates},
		{"paths.analysis", p.Analysis},
		{"paths.clusters", p.Clusters},
		{"paths.insights", p.Insights},
	}
	for i := range tables {
		tables[i].path = strings.Trim(path.Clean("/"+strings.TrimSpace(tables[i].path)), "/")
		if tables[i].path == "" {
			return fmt.Errorf("%s is required", tables[i].name)
		}
	}
	for _, name := range []string{"paths.cleaned", "paths.aggregates", "paths.clusters"} {
		for _, t := range tables {
			if t.name == name {
				tables = append(tables, table{name + " mirror", t.path + p.MirrorSuffix})
				break
			}
		}
	}

	for i, a := range tables {
		for _, b := range tables[i+1:] {
			if a.path == b.path {
				return fmt.Errorf("%s and %s both point at '%s'", a.name, b.name, a.path)
			}
			if strings.HasPrefix(b.path, a.path+"/") || strings.HasPrefix(a.path, b.path+"/") {
				return fmt.Errorf("%s ('%s') and %s ('%s') must not be nested", a.name, a.path, b.name, b.path)
			}
		}
	}
	return nil
}

func validateAnalysis(a *AnalysisConfig) error {
	if len(a.MAWindows) != 4 {
		return fmt.Errorf("analysis.ma_windows must list exactly 4 windows")
	}
	for i, w := range a.MAWindows {
		if w <= 0 || (i > 0 && w <= a.MAWindows[i-1]) {
			return fmt.Errorf("analysis.ma_windows must be positive and increasing")
		}
	}
	windows := map[string]int{
		"analysis.rsi_window":       a.RSIWindow,
		"analysis.bollinger_window": a.BollingerWindow,
		"analysis.macd_fast":        a.MACDFast,
		"analysis.macd_slow":        a.MACDSlow,
		"analysis.volume_window":    a.VolumeWindow,
		"analysis.clusters":         a.Clusters,
	}
	for name, v := range windows {
		if v <= 0 {
			return fmt.Errorf("%s must be greater than 0", name)
		}
	}
	if a.RSIOversold >= a.RSIOverbought {
		return fmt.Errorf("analysis.rsi_oversold must be below analysis.rsi_overbought")
	}
	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
