package logger

import "os"

type Config struct {
	Level      Level  `json:"level"       yaml:"level"`
	Format     string `json:"format"      yaml:"format"` // console, json, text
	Output     string `json:"output"      yaml:"output"` // stdout, stderr, file
	FilePath   string `json:"file_path"   yaml:"file_path"`
	MaxSize    int    `json:"max_size"    yaml:"max_size"` // MB
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAge     int    `json:"max_age"     yaml:"max_age"` // days
	Compress   bool   `json:"compress"    yaml:"compress"`

	// Fields are static fields attached to every entry, e.g. for log
	// aggregation in container environments.
	Fields map[string]string `json:"fields" yaml:"fields"`
}

func NewDefaultConfig() *Config {
	hostname, _ := os.Hostname()

	cfg := &Config{
		Level:      LevelInfo,
		Format:     "console",
		Output:     "stdout",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Fields: map[string]string{
			"service":  "pushhub",
			"hostname": hostname,
		},
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Fields["environment"] = env
	}
	if ns := os.Getenv("KUBERNETES_NAMESPACE"); ns != "" {
		cfg.Fields["k8s_namespace"] = ns
	}
	if pod := os.Getenv("KUBERNETES_POD_NAME"); pod != "" {
		cfg.Fields["k8s_pod"] = pod
	}

	return cfg
}
