// Package config loads database and application settings from the environment.
//
// Loading never fails because a required value is missing: missing fields are
// reported as warnings and the process continues with blanks. Only malformed
// values (for example a non-numeric port) are returned as errors.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Warehouse drivers.
const (
	DriverRedshift   = "redshift"
	DriverClickHouse = "clickhouse"
)

// Chart asset inclusion modes.
const (
	AssetsCDN       = "cdn"
	AssetsInline    = "inline"
	AssetsDirectory = "directory"
)

// OracleConfig holds connection settings for the relational database.
type OracleConfig struct {
	Host        string `envconfig:"HOST" default:"127.0.0.1" validate:"required"`
	Port        int    `envconfig:"PORT" default:"40112"`
	ServiceName string `envconfig:"SERVICE_NAME" validate:"required"`
	Username    string `envconfig:"USERNAME" validate:"required"`
	Password    string `envconfig:"PASSWORD" validate:"required"`
	DriverPath  string `envconfig:"DRIVER_PATH" default:"C:\\ojdbc11-21.5.0.0.jar" validate:"required"`
	DriverClass string `envconfig:"DRIVER_CLASS" default:"oracle.jdbc.driver.OracleDriver"`
}

// JDBCURL returns the thin-driver URL for this database.
func (c OracleConfig) JDBCURL() string {
	return fmt.Sprintf("jdbc:oracle:thin:@//%s:%d/%s", c.Host, c.Port, c.ServiceName)
}

// URL returns the go-ora connection URL.
func (c OracleConfig) URL() string {
	u := url.URL{
		Scheme: "oracle",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.ServiceName,
	}
	return u.String()
}

// Missing returns the names of required fields that are empty.
func (c OracleConfig) Missing() []string {
	return missingFields(c, oracleFieldNames)
}

// RedshiftConfig holds connection settings for the analytical warehouse.
// Driver selects Redshift (postgres wire protocol) or ClickHouse.
type RedshiftConfig struct {
	Driver   string `envconfig:"DRIVER" default:"redshift" validate:"oneof=redshift clickhouse"`
	Host     string `envconfig:"HOST" validate:"required"`
	Port     int    `envconfig:"PORT" default:"5439"`
	Database string `envconfig:"DATABASE" validate:"required"`
	Username string `envconfig:"USERNAME" validate:"required"`
	Password string `envconfig:"PASSWORD" validate:"required"`
	Schema   string `envconfig:"SCHEMA" default:"public"`
	SSLMode  string `envconfig:"SSLMODE" default:"prefer"`
}

// URL returns the connection URL for the configured driver.
func (c RedshiftConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	if c.Driver == DriverClickHouse {
		u.Scheme = "clickhouse"
		return u.String()
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// QueryKind returns the template directory for the configured driver.
func (c RedshiftConfig) QueryKind() string {
	if c.Driver == DriverClickHouse {
		return DriverClickHouse
	}
	return DriverRedshift
}

// Missing returns the names of required fields that are empty.
func (c RedshiftConfig) Missing() []string {
	return missingFields(c, redshiftFieldNames)
}

// AppConfig holds paths and tunables for the tool itself.
type AppConfig struct {
	QueryDir        string        `envconfig:"QUERY_DIR" default:"query"`
	OutputDir       string        `envconfig:"OUTPUT_DIR" default:"output"`
	ChartDir        string        `envconfig:"CHART_DIR" default:"output/visualizations"`
	LogDir          string        `envconfig:"LOG_DIR" default:"logs"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"human"`
	BatchSize       int           `envconfig:"BATCH_SIZE" default:"1000"`
	HeatmapMaxRows  int           `envconfig:"HEATMAP_MAX_ROWS" default:"100"`
	RankingTopN     int           `envconfig:"RANKING_TOP_N" default:"20"`
	ChartAssets     string        `envconfig:"CHART_ASSETS" default:"cdn"`
	ChartAssetsHost string        `envconfig:"CHART_ASSETS_HOST"`
	ChartAssetsDir  string        `envconfig:"CHART_ASSETS_DIR" default:"assets"`
	MetricsFile     string        `envconfig:"METRICS_FILE"`
	QueryTimeout    time.Duration `envconfig:"QUERY_TIMEOUT" default:"0s"`
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	oracleFieldNames = map[string]string{
		"Host":        "host",
		"ServiceName": "service_name",
		"Username":    "username",
		"Password":    "password",
		"DriverPath":  "driver_path",
	}
	redshiftFieldNames = map[string]string{
		"Driver":   "driver",
		"Host":     "host",
		"Database": "database",
		"Username": "username",
		"Password": "password",
	}
)

// Load reads .env (if present) and the process environment into the three
// config records and logs a warning listing missing required fields.
func Load(logger zerolog.Logger, envFiles ...string) (OracleConfig, RedshiftConfig, AppConfig, error) {
	var (
		oracle   OracleConfig
		redshift RedshiftConfig
		app      AppConfig
	)

	if err := loadEnvFiles(envFiles...); err != nil {
		return oracle, redshift, app, err
	}

	if err := envconfig.Process("ORACLE", &oracle); err != nil {
		return oracle, redshift, app, fmt.Errorf("load oracle config: %w", err)
	}
	if err := envconfig.Process("REDSHIFT", &redshift); err != nil {
		return oracle, redshift, app, fmt.Errorf("load redshift config: %w", err)
	}
	if err := envconfig.Process("APP", &app); err != nil {
		return oracle, redshift, app, fmt.Errorf("load app config: %w", err)
	}

	if missing := oracle.Missing(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("oracle config incomplete")
	}
	if missing := redshift.Missing(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("redshift config incomplete")
	}

	return oracle, redshift, app, nil
}

// loadEnvFiles loads .env style files without overriding variables that are
// already set. With no arguments ".env" is tried; a missing file is not an error.
func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// missingFields runs struct validation and maps failed fields to their
// documented names.
func missingFields(v any, names map[string]string) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	var out []string
	for _, fe := range verrs {
		name, ok := names[fe.StructField()]
		if !ok {
			name = fe.StructField()
		}
		out = append(out, name)
	}
	return out
}
