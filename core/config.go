package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
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

		Server   ServerConfig
		Database DatabaseConfig
		Grading  GradingConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite3
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite3 only
	}

	GradingConfig struct {
		// CacheTTL is how long a cached quarter grade is served before it is recomputed.
		CacheTTL time.Duration
		// LateEnrollmentDays is the size of the window before a quarter's end in which
		// a new enrollment voids the student's grades for that quarter.
		LateEnrollmentDays int
		// RecentQuarterWindow bounds the `ended` sweep to quarters that ended recently.
		RecentQuarterWindow time.Duration
		SweepInterval       time.Duration
		// SweepSchedule is a cron expression overriding SweepInterval, e.g. "30 2 * * *".
		SweepSchedule    string
		SchedulerEnabled bool
		SystemUser       string // recorded as voided_by by automatic voiding
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

func (dbc DatabaseConfig) String() string {
	if dbc.Engine == "sqlite3" {
		return fmt.Sprintf("sqlite3:%s", dbc.Path)
	}
	return fmt.Sprintf("%s://%s/%s", dbc.Engine, dbc.Address(), dbc.Name)
}

// SweepSpec returns the schedule of the grades scheduler.
func (gc GradingConfig) SweepSpec() string {
	if gc.SweepSchedule != "" {
		return gc.SweepSchedule
	}
	return "@every " + gc.SweepInterval.String()
}

// NewConfig loads the configuration from the environment (prefixed with the value of $ENV)
// and the optional `config/.env.<env>` file at the project root.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", 5432)
	v.SetDefault("databaseName", "masomo")
	v.SetDefault("databaseUser", "masomo")
	v.SetDefault("databasePassword", "")
	v.SetDefault("databaseAdminUser", "")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseDisableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("databasePath", "masomo.db")

	v.SetDefault("gradingCacheTTL", 3*time.Hour)
	v.SetDefault("gradingLateEnrollmentDays", 14)
	v.SetDefault("gradingRecentQuarterWindow", 30*24*time.Hour)
	v.SetDefault("gradingSweepInterval", 3*time.Hour)
	v.SetDefault("gradingSweepSchedule", "")
	v.SetDefault("gradingSchedulerEnabled", false)
	v.SetDefault("gradingSystemUser", "system:late-enrollment")

	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
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
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			Address:         v.GetString("serverAddress"),
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
			Path:          v.GetString("databasePath"),
		},
		Grading: GradingConfig{
			CacheTTL:            v.GetDuration("gradingCacheTTL"),
			LateEnrollmentDays:  v.GetInt("gradingLateEnrollmentDays"),
			RecentQuarterWindow: v.GetDuration("gradingRecentQuarterWindow"),
			SweepInterval:       v.GetDuration("gradingSweepInterval"),
			SweepSchedule:       v.GetString("gradingSweepSchedule"),
			SchedulerEnabled:    v.GetBool("gradingSchedulerEnabled"),
			SystemUser:          v.GetString("gradingSystemUser"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: no .env lookup, in-process defaults.
func NewTestConfig() *Config {
	return &Config{
		AppName:  "Masomo",
		Build:    "test",
		Env:      "TEST",
		Debug:    true,
		TestMode: true,
		Server: ServerConfig{
			Host:            "localhost",
			ShutdownTimeout: time.Second,
		},
		Database: DatabaseConfig{Engine: "sqlite3", Path: ":memory:"},
		Grading: GradingConfig{
			CacheTTL:            3 * time.Hour,
			LateEnrollmentDays:  14,
			RecentQuarterWindow: 30 * 24 * time.Hour,
			SweepInterval:       3 * time.Hour,
			SystemUser:          "system:late-enrollment",
		},
	}
}
