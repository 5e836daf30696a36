package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          int
		Name          string // sqlite: file path or DSN
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		URL           string
		AssessmentTTL time.Duration
	}

	RetryConfig struct {
		MaxAttempts int
		BaseDelay   time.Duration
	}

	Config struct {
		Debug            bool
		TestMode         bool
		AppName          string
		Env              string
		Build            string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address
		AuditEmail       string
		ExpirySchedule   string
		ActivityBuffer   int
		Server           ServerConfig
		Database         DatabaseConfig
		Redis            RedisConfig
		Retry            RetryConfig
	}
)

// Address returns the database "host:port".
func (dc DatabaseConfig) Address() string {
	if dc.Port == 0 {
		return dc.Host
	}
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Tuutta")
	v.SetDefault("build", "develop")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("auditEmail", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("expirySchedule", "@hourly")
	v.SetDefault("activityBuffer", 256)
	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", 5432)
	v.SetDefault("databaseName", "tuutta")
	v.SetDefault("databaseUser", "tuutta")
	v.SetDefault("databasePassword", "")
	v.SetDefault("databaseAdminUser", "postgres")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseDisableTLS", true)
	v.SetDefault("redisUrl", "")
	v.SetDefault("redisAssessmentTTL", 10*time.Minute)
	v.SetDefault("retryMaxAttempts", 5)
	v.SetDefault("retryBaseDelay", 20*time.Millisecond)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	appName := v.GetString("appName")
	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          appName,
		Env:              env,
		Build:            v.GetString("build"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: mail.Address{Name: appName, Address: v.GetString("defaultFromEmail")},
		AuditEmail:       v.GetString("auditEmail"),
		ExpirySchedule:   v.GetString("expirySchedule"),
		ActivityBuffer:   v.GetInt("activityBuffer"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetInt("databasePort"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Redis: RedisConfig{
			URL:           v.GetString("redisUrl"),
			AssessmentTTL: v.GetDuration("redisAssessmentTTL"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retryMaxAttempts"),
			BaseDelay:   v.GetDuration("retryBaseDelay"),
		},
	}
}
