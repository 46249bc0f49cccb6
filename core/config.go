package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName      string
		Build        string
		Env          string // DEV (local; default), TEST, QA, PROD
		Debug        bool
		TestMode     bool
		RollbarToken string

		API   APIConfig
		Web   WebConfig
		Query QueryConfig
		CLI   CLIConfig
	}

	// APIConfig points the client at the school REST backend.
	APIConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	WebConfig struct {
		Addr            string
		DebugAddr       string
		SessionSecret   string
		ShutdownTimeout time.Duration
	}

	QueryConfig struct {
		StaleTime time.Duration
	}

	CLIConfig struct {
		ConfigDir string
	}
)

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("api.baseURL", "http://localhost:8080")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("web.addr", ":8000")
	v.SetDefault("web.debugAddr", ":4000")
	v.SetDefault("web.sessionSecret", "q9#v!x2(mk)7e$+tn=ws&uh4p(c)@z*8d(#fa3^$kgb1emr")
	v.SetDefault("web.shutdownTimeout", 5*time.Second)
	v.SetDefault("query.staleTime", 5*time.Second)
	v.SetDefault("cli.configDir", defaultConfigDir())

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Web: WebConfig{
			Addr:            v.GetString("web.addr"),
			DebugAddr:       v.GetString("web.debugAddr"),
			SessionSecret:   v.GetString("web.sessionSecret"),
			ShutdownTimeout: v.GetDuration("web.shutdownTimeout"),
		},
		Query: QueryConfig{
			StaleTime: v.GetDuration("query.staleTime"),
		},
		CLI: CLIConfig{
			ConfigDir: v.GetString("cli.configDir"),
		},
	}
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".masomo"
	}
	return filepath.Join(dir, "masomo")
}
