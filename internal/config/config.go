package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Smtp       SmtpConfig       `mapstructure:"smtp"`
	Source     SourceConfig     `mapstructure:"source"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Routing    RoutingConfig    `mapstructure:"routing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// ClassifierConfig holds the department predictor endpoint configuration
type ClassifierConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	TimeoutSec    int     `mapstructure:"timeout_sec"`
	UseRules      bool    `mapstructure:"use_rules"`
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// SmtpConfig holds the outbound SMTP configuration used for forwarding
type SmtpConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// SourceConfig selects and configures the mail source implementation
type SourceConfig struct {
	Kind  string      `mapstructure:"kind"` // "gmail" or "imap"
	Gmail GmailConfig `mapstructure:"gmail"`
	IMAP  IMAPConfig  `mapstructure:"imap"`
}

// GmailConfig holds Gmail API OAuth2 configuration
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

// IMAPConfig holds IMAP connection configuration
type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Folder   string `mapstructure:"folder"`
}

// FetchConfig holds the mailbox fetch worker configuration
type FetchConfig struct {
	SleepSeconds int `mapstructure:"sleep_seconds"`
}

// RoutingConfig holds the routing worker configuration
type RoutingConfig struct {
	BatchSize            int      `mapstructure:"batch_size"`
	SleepSeconds         int      `mapstructure:"sleep_seconds"`
	SubjectPrefix        string   `mapstructure:"subject_prefix"`
	CanonicalDepartments []string `mapstructure:"canonical_departments"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("classifier.base_url", "http://127.0.0.1:8011")
	viper.SetDefault("classifier.timeout_sec", 5)
	viper.SetDefault("classifier.use_rules", true)

	viper.SetDefault("smtp.host", "smtp.gmail.com")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.from_address", "no-reply@inteliroute.local")
	viper.SetDefault("smtp.from_name", "InteliRoute Router")

	viper.SetDefault("source.kind", "gmail")
	viper.SetDefault("source.imap.host", "imap.gmail.com")
	viper.SetDefault("source.imap.port", 993)
	viper.SetDefault("source.imap.folder", "INBOX")

	viper.SetDefault("fetch.sleep_seconds", 10)

	viper.SetDefault("routing.batch_size", 50)
	viper.SetDefault("routing.sleep_seconds", 2)
	viper.SetDefault("routing.subject_prefix", "[InteliRoute]")
	viper.SetDefault("routing.canonical_departments",
		[]string{"HR", "IT", "Finance", "Support", "Sales", "Legal", "Operations", "Other"})
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("classifier.base_url", "CLASSIFIER_BASE_URL")
	viper.BindEnv("classifier.timeout_sec", "CLASSIFIER_TIMEOUT_SEC")
	viper.BindEnv("classifier.use_rules", "CLASSIFIER_USE_RULES")
	viper.BindEnv("classifier.min_confidence", "CLASSIFIER_MIN_CONFIDENCE")

	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.from_address", "SMTP_FROM_ADDRESS")
	viper.BindEnv("smtp.from_name", "SMTP_FROM_NAME")

	viper.BindEnv("source.kind", "SOURCE_KIND")
	viper.BindEnv("source.gmail.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("source.gmail.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("source.gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("source.imap.host", "IMAP_HOST")
	viper.BindEnv("source.imap.port", "IMAP_PORT")
	viper.BindEnv("source.imap.username", "IMAP_USERNAME")
	viper.BindEnv("source.imap.password", "IMAP_PASSWORD")
	viper.BindEnv("source.imap.folder", "IMAP_FOLDER")

	viper.BindEnv("fetch.sleep_seconds", "FETCH_SLEEP_SECONDS")

	viper.BindEnv("routing.batch_size", "ROUTING_BATCH_SIZE")
	viper.BindEnv("routing.sleep_seconds", "ROUTING_SLEEP_SECONDS")
	viper.BindEnv("routing.subject_prefix", "ROUTING_SUBJECT_PREFIX")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Classifier.BaseURL == "" {
		return fmt.Errorf("classifier base URL is required")
	}
	if c.Classifier.MinConfidence <= 0 || c.Classifier.MinConfidence > 1 {
		return fmt.Errorf("classifier min_confidence must be in (0, 1]")
	}

	if c.Smtp.Host == "" || c.Smtp.FromAddress == "" {
		return fmt.Errorf("smtp host and from_address are required")
	}

	switch c.Source.Kind {
	case "gmail":
		if c.Source.Gmail.ClientID == "" || c.Source.Gmail.ClientSecret == "" || c.Source.Gmail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required for the gmail source")
		}
	case "imap":
		if c.Source.IMAP.Username == "" || c.Source.IMAP.Password == "" {
			return fmt.Errorf("IMAP credentials are required for the imap source")
		}
	default:
		return fmt.Errorf("source kind must be gmail or imap, got %q", c.Source.Kind)
	}

	if c.Fetch.SleepSeconds <= 0 {
		return fmt.Errorf("fetch sleep_seconds must be greater than 0")
	}
	if c.Routing.BatchSize <= 0 {
		return fmt.Errorf("routing batch_size must be greater than 0")
	}
	if c.Routing.SleepSeconds <= 0 {
		return fmt.Errorf("routing sleep_seconds must be greater than 0")
	}
	if len(c.Routing.CanonicalDepartments) == 0 {
		return fmt.Errorf("routing canonical_departments must not be empty")
	}

	return nil
}
