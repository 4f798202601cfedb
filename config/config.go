package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 LABELTOOL_SERVER_PORT
const EnvPrefix = "LABELTOOL"

const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Editor     EditorConfig     `mapstructure:"editor"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PublicURL    string        `mapstructure:"public_url"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StorageConfig 会话存储后端
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	UploadDir    string   `mapstructure:"upload_dir"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// ProcessingConfig 去除文字与生成文字
type ProcessingConfig struct {
	InpaintRadius    float64 `mapstructure:"inpaint_radius"`
	MaskPadding      int     `mapstructure:"mask_padding"`
	MaxConcurrent    int     `mapstructure:"max_concurrent"`
	QueueTimeout     int     `mapstructure:"queue_timeout"`
	FontFace         int     `mapstructure:"font_face"`
	BaseFontScale    float64 `mapstructure:"base_font_scale"`
	TextColor        string  `mapstructure:"text_color"`
	CleanupTempFiles bool    `mapstructure:"cleanup_temp_files"`
}

type DetectionConfig struct {
	Language      string  `mapstructure:"language"`
	MinConfidence float64 `mapstructure:"min_confidence"`
	PageSegMode   int     `mapstructure:"page_seg_mode"`
}

// EditorConfig 编辑器客户端
type EditorConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	MaxHistorySize int           `mapstructure:"max_history_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Load 从 YAML 文件加载配置，环境变量优先于文件
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

// New 使用默认配置路径加载配置
func New() *Config {
	return NewFromPath("config.yaml")
}

// NewFromPath 先加载 .env，配置文件缺失时退回默认值与环境变量
func NewFromPath(configPath string) *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		cfg, err = decode(newViper())
		if err != nil {
			return getDefaultConfig()
		}
	}
	return cfg
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverRedis:
	case DriverPostgres, DriverSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Processing.MaxConcurrent <= 0 {
		return fmt.Errorf("processing.max_concurrent must be positive, got %d", c.Processing.MaxConcurrent)
	}
	if c.Processing.QueueTimeout <= 0 {
		return fmt.Errorf("processing.queue_timeout must be positive, got %d", c.Processing.QueueTimeout)
	}
	if c.Editor.MaxHistorySize <= 0 {
		return fmt.Errorf("editor.max_history_size must be positive, got %d", c.Editor.MaxHistorySize)
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection.min_confidence must be within [0, 1], got %v", c.Detection.MinConfidence)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := getDefaultConfig()

	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.mode", def.Server.Mode)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	v.SetDefault("server.public_url", def.Server.PublicURL)

	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.password", def.Redis.Password)
	v.SetDefault("redis.db", def.Redis.DB)
	v.SetDefault("redis.ttl", def.Redis.TTL)

	v.SetDefault("storage.driver", def.Storage.Driver)
	v.SetDefault("storage.dsn", def.Storage.DSN)

	v.SetDefault("upload.max_size", def.Upload.MaxSize)
	v.SetDefault("upload.upload_dir", def.Upload.UploadDir)
	v.SetDefault("upload.allowed_types", def.Upload.AllowedTypes)

	v.SetDefault("processing.inpaint_radius", def.Processing.InpaintRadius)
	v.SetDefault("processing.mask_padding", def.Processing.MaskPadding)
	v.SetDefault("processing.max_concurrent", def.Processing.MaxConcurrent)
	v.SetDefault("processing.queue_timeout", def.Processing.QueueTimeout)
	v.SetDefault("processing.font_face", def.Processing.FontFace)
	v.SetDefault("processing.base_font_scale", def.Processing.BaseFontScale)
	v.SetDefault("processing.text_color", def.Processing.TextColor)
	v.SetDefault("processing.cleanup_temp_files", def.Processing.CleanupTempFiles)

	v.SetDefault("detection.language", def.Detection.Language)
	v.SetDefault("detection.min_confidence", def.Detection.MinConfidence)
	v.SetDefault("detection.page_seg_mode", def.Detection.PageSegMode)

	v.SetDefault("editor.server_url", def.Editor.ServerURL)
	v.SetDefault("editor.max_history_size", def.Editor.MaxHistorySize)
	v.SetDefault("editor.request_timeout", def.Editor.RequestTimeout)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Storage: StorageConfig{
			Driver: DriverRedis,
		},
		Upload: UploadConfig{
			MaxSize:      20 * 1024 * 1024,
			UploadDir:    "./uploads",
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg"},
		},
		Processing: ProcessingConfig{
			InpaintRadius:    3,
			MaskPadding:      4,
			MaxConcurrent:    3,
			QueueTimeout:     30,
			FontFace:         0,
			BaseFontScale:    1.0,
			TextColor:        "#000000",
			CleanupTempFiles: false,
		},
		Detection: DetectionConfig{
			Language:      "eng",
			MinConfidence: 0.3,
			PageSegMode:   3,
		},
		Editor: EditorConfig{
			ServerURL:      "http://localhost:8080",
			MaxHistorySize: 50,
			RequestTimeout: 60 * time.Second,
		},
	}
}
