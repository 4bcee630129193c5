package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	LogLevel          string
	LogConsole        bool
	Root              string
	SimplifyTolerance float64
	LayerName         string
	NoIndex           bool
	Metrics           bool
}

// LoadConfig reads .env, then the environment, then command line flags, each
// overriding the last.
func LoadConfig(args []string) (Config, []string, error) {
	_ = godotenv.Load(".env")

	cfg := FromEnv()
	fs := pflag.NewFlagSet("geoblob", pflag.ContinueOnError)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	fs.BoolVar(&cfg.LogConsole, "log-console", cfg.LogConsole, "human readable log output")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "directory the connection filesystem is rooted at")
	fs.Float64Var(&cfg.SimplifyTolerance, "simplify", cfg.SimplifyTolerance, "simplification tolerance applied by dump (0 disables)")
	fs.StringVar(&cfg.LayerName, "layer", cfg.LayerName, "layer name written by convert")
	fs.BoolVar(&cfg.NoIndex, "no-index", cfg.NoIndex, "write FlatGeobuf files without a spatial index")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "print collected metrics on exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}
	return cfg, fs.Args(), nil
}

func FromEnv() Config {
	return Config{
		LogLevel:          getEnv("GEOBLOB_LOG_LEVEL", "info"),
		LogConsole:        getEnvBool("GEOBLOB_LOG_CONSOLE", false),
		Root:              getEnv("GEOBLOB_ROOT", "."),
		SimplifyTolerance: getEnvFloat("GEOBLOB_SIMPLIFY_TOLERANCE", 0),
		LayerName:         getEnv("GEOBLOB_LAYER", ""),
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvBool(k string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(k)); err == nil {
		return b
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return def
}
