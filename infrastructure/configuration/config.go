package configuration

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"content-pipeline/infrastructure/logger"

	"github.com/spf13/viper"
)

const (
	StoreSheetsBest   = "sheetsbest"
	StoreGoogleSheets = "googlesheets"
	StorePostgres     = "postgres"
	StoreMSSQL        = "mssql"
	StoreMongo        = "mongo"

	PublisherNoop       = "noop"
	PublisherPubSub     = "pubsub"
	PublisherServiceBus = "servicebus"
)

type Config struct {
	App         App         `json:"app"`
	Logger      Logger      `json:"logger"`
	Store       Store       `json:"store"`
	Database    Database    `json:"database"`
	GoogleSheet GoogleSheet `json:"googleSheet"`
	RedisClient RedisClient `json:"redisClient"`
	Publisher   Publisher   `json:"publisher"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	Ingestion   Ingestion   `json:"ingestion"`
	Schedule    Schedule    `json:"schedule"`
	Retry       Retry       `json:"retry"`
	Dedup       Dedup       `json:"dedup"`
}

type App struct {
	Port         int      `json:"port"`
	SecretKey    string   `json:"secretKey"`
	TLSEnabled   bool     `json:"tlsEnabled"`
	TLSCertFile  string   `json:"tlsCertFile"`
	TLSKeyFile   string   `json:"tlsKeyFile"`
	AllowOrigins []string `json:"allowOrigins"`
}

type Logger struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

type Store struct {
	Driver     string     `json:"driver"`
	SheetsBest SheetsBest `json:"sheetsBest"`
}

// SheetsBest holds the endpoints of the remote tabular store, one per collection.
type SheetsBest struct {
	APIKey     string `json:"apiKey"`
	SourcesURL string `json:"sourcesUrl"`
	PostsURL   string `json:"postsUrl"`
	QueueURL   string `json:"queueUrl"`
	LogsURL    string `json:"logsUrl"`
	RevenueURL string `json:"revenueUrl"`
	PageSize   int    `json:"pageSize"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mssql Db `json:"mssql"`
	Mongo Db `json:"mongo"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	URL      string `json:"url"`
}

type GoogleSheet struct {
	SpreadsheetId   string `json:"spreadsheetId"`
	CredentialsFile string `json:"credentialsFile"`
	SourcesTab      string `json:"sourcesTab"`
	PostsTab        string `json:"postsTab"`
	QueueTab        string `json:"queueTab"`
	LogsTab         string `json:"logsTab"`
	RevenueTab      string `json:"revenueTab"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Addr returns host:port, or empty when Redis is not configured.
func (r RedisClient) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

type Publisher struct {
	Driver string `json:"driver"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	TopicID   string `json:"topicID"`
}

type ServiceBus struct {
	Namespace        string `json:"namespace"`
	ConnectionString string `json:"connectionString"`
	QueueName        string `json:"queueName"`
}

type Ingestion struct {
	MaxItemsPerSource int           `json:"maxItemsPerSource"`
	MaxNewPostsTotal  int           `json:"maxNewPostsTotal"`
	QueueLeadMinutes  int           `json:"queueLeadMinutes"`
	DefaultPlatform   string        `json:"defaultPlatform"`
	DefaultStatus     string        `json:"defaultStatus"`
	FetchInterval     time.Duration `json:"fetchInterval"`
	UserAgent         string        `json:"userAgent"`
	// SourcesFile, when set, replaces the store's source list with a local CSV.
	SourcesFile string `json:"sourcesFile"`
}

type Schedule struct {
	Enabled         bool `json:"enabled"`
	IngestionMinute int  `json:"ingestionMinute"`
	PublishMinute   int  `json:"publishMinute"`
	// LockTTL is the Redis lease length. A live holder renews it every
	// third of the TTL, so it only limits how long a crashed run blocks.
	LockTTL time.Duration `json:"lockTTL"`
}

type Retry struct {
	Retries int           `json:"retries"`
	Backoff time.Duration `json:"backoff"`
	Timeout time.Duration `json:"timeout"`
}

type Dedup struct {
	BodyContainment bool `json:"bodyContainment"`
}

// envBindings maps config keys to the environment variables that override them.
// The first non-empty variable wins.
var envBindings = map[string][]string{
	"app.port":                    {"APP_PORT", "PORT"},
	"app.secretKey":               {"SECRET_KEY"},
	"app.tlsEnabled":              {"TLS_ENABLED"},
	"app.tlsCertFile":             {"TLS_CERT_FILE"},
	"app.tlsKeyFile":              {"TLS_KEY_FILE"},
	"logger.format":               {"LOG_FORMAT"},
	"logger.level":                {"LOG_LEVEL"},
	"store.driver":                {"STORE_DRIVER"},
	"store.sheetsBest.apiKey":     {"SHEETS_BEST_API_KEY"},
	"store.sheetsBest.sourcesUrl": {"SHEETS_BEST_URL"},
	"store.sheetsBest.postsUrl":   {"SHEETS_BEST_POSTS_URL"},
	"store.sheetsBest.queueUrl":   {"SHEETS_BEST_QUEUE_URL"},
	"store.sheetsBest.logsUrl":    {"SHEETS_BEST_LOGS_URL"},
	"store.sheetsBest.revenueUrl": {"SHEETS_BEST_REVENUE_URL"},
	"database.psql.url":           {"DATABASE_URL"},
	"database.psql.name":          {"DB_NAME"},
	"database.psql.host":          {"DB_HOST"},
	"database.psql.port":          {"DB_PORT"},
	"database.psql.user":          {"DB_USER"},
	"database.psql.password":      {"DB_PASSWORD"},
	"database.mssql.name":         {"MSSQL_DB_NAME"},
	"database.mssql.host":         {"MSSQL_HOST"},
	"database.mssql.port":         {"MSSQL_PORT"},
	"database.mssql.user":         {"MSSQL_USER"},
	"database.mssql.password":     {"MSSQL_PASSWORD"},
	"database.mongo.url":          {"MONGO_URI"},
	"database.mongo.name":         {"MONGO_DB_NAME"},
	"googleSheet.spreadsheetId":   {"GOOGLE_SPREADSHEET_ID"},
	"googleSheet.credentialsFile": {"GOOGLE_APPLICATION_CREDENTIALS"},
	"redisClient.host":            {"REDIS_HOST"},
	"redisClient.port":            {"REDIS_PORT"},
	"redisClient.password":        {"REDIS_PASSWORD"},
	"redisClient.username":        {"REDIS_USERNAME"},
	"publisher.driver":            {"PUBLISHER_DRIVER"},
	"pubsub.projectID":            {"PUBSUB_PROJECT_ID"},
	"pubsub.topicID":              {"PUBSUB_TOPIC_ID"},
	"serviceBus.namespace":        {"SERVICEBUS_NAMESPACE"},
	"serviceBus.connectionString": {"SERVICEBUS_CONNECTION_STRING"},
	"serviceBus.queueName":        {"SERVICEBUS_QUEUE"},
	"schedule.enabled":            {"SCHEDULE_ENABLED"},
	"ingestion.sourcesFile":       {"SOURCES_FILE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.allowOrigins", []string{"*"})
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.level", "debug")
	v.SetDefault("store.driver", StoreSheetsBest)
	v.SetDefault("store.sheetsBest.pageSize", 0)
	v.SetDefault("database.mssql.port", "1433")
	v.SetDefault("database.mongo.name", "content_pipeline")
	v.SetDefault("googleSheet.sourcesTab", "sources")
	v.SetDefault("googleSheet.postsTab", "posts")
	v.SetDefault("googleSheet.queueTab", "queue")
	v.SetDefault("googleSheet.logsTab", "logs")
	v.SetDefault("googleSheet.revenueTab", "revenue")
	v.SetDefault("publisher.driver", PublisherNoop)
	v.SetDefault("serviceBus.queueName", "publish-queue")
	v.SetDefault("ingestion.maxItemsPerSource", 5)
	v.SetDefault("ingestion.maxNewPostsTotal", 25)
	v.SetDefault("ingestion.queueLeadMinutes", 30)
	v.SetDefault("ingestion.defaultPlatform", "twitter")
	v.SetDefault("ingestion.defaultStatus", "pending")
	v.SetDefault("ingestion.fetchInterval", time.Duration(0))
	v.SetDefault("ingestion.userAgent", "content-pipeline/1.0")
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.ingestionMinute", 5)
	v.SetDefault("schedule.publishMinute", 0)
	v.SetDefault("schedule.lockTTL", 30*time.Minute)
	v.SetDefault("retry.retries", 2)
	v.SetDefault("retry.backoff", 500*time.Millisecond)
	v.SetDefault("retry.timeout", 10*time.Second)
	v.SetDefault("dedup.bodyContainment", true)
}

// Load reads config.json (or config-<ENV>.json) from the given directories,
// falling back to ".", "../" and "../../", applies environment overrides and
// validates the result. A nil error means the config is safe to run with.
func Load(paths ...string) (*Config, error) {
	name := getConfigName()
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("json")
	if len(paths) == 0 {
		paths = []string{".", "../", "../../"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", name, err)
		}
		logger.GetLogger().WithField("config", name).Warn("Config file not found, using defaults and environment")
	} else {
		logger.GetLogger().WithField("config", v.ConfigFileUsed()).Info("Config set up successfully")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func getConfigName() string {
	name := "config"
	if env := os.Getenv("ENV"); env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func (c *Config) normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Publisher.Driver = strings.ToLower(strings.TrimSpace(c.Publisher.Driver))
	if c.App.TLSEnabled {
		if c.App.TLSCertFile == "" {
			if _, err := os.Stat("certs/localhost.crt"); err == nil {
				c.App.TLSCertFile = "certs/localhost.crt"
			}
		}
		if c.App.TLSKeyFile == "" {
			if _, err := os.Stat("certs/localhost.key"); err == nil {
				c.App.TLSKeyFile = "certs/localhost.key"
			}
		}
	}
}

// Validate reports every missing or out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("missing required config %s", key))
		}
	}

	switch c.Store.Driver {
	case StoreSheetsBest:
		sb := c.Store.SheetsBest
		require(sb.APIKey, "store.sheetsBest.apiKey (SHEETS_BEST_API_KEY)")
		require(sb.SourcesURL, "store.sheetsBest.sourcesUrl (SHEETS_BEST_URL)")
		require(sb.PostsURL, "store.sheetsBest.postsUrl (SHEETS_BEST_POSTS_URL)")
		require(sb.QueueURL, "store.sheetsBest.queueUrl (SHEETS_BEST_QUEUE_URL)")
		require(sb.LogsURL, "store.sheetsBest.logsUrl (SHEETS_BEST_LOGS_URL)")
		require(sb.RevenueURL, "store.sheetsBest.revenueUrl (SHEETS_BEST_REVENUE_URL)")
	case StoreGoogleSheets:
		require(c.GoogleSheet.SpreadsheetId, "googleSheet.spreadsheetId")
	case StorePostgres:
		if c.Database.Psql.URL == "" {
			require(c.Database.Psql.Host, "database.psql.host")
			require(c.Database.Psql.Name, "database.psql.name")
		}
	case StoreMSSQL:
		require(c.Database.Mssql.Host, "database.mssql.host")
	case StoreMongo:
		if c.Database.Mongo.URL == "" {
			require(c.Database.Mongo.Host, "database.mongo.host")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Publisher.Driver {
	case PublisherNoop:
	case PublisherPubSub:
		require(c.Pubsub.ProjectID, "pubsub.projectID")
		require(c.Pubsub.TopicID, "pubsub.topicID")
	case PublisherServiceBus:
		if c.ServiceBus.ConnectionString == "" {
			require(c.ServiceBus.Namespace, "serviceBus.namespace")
		}
		require(c.ServiceBus.QueueName, "serviceBus.queueName")
	default:
		errs = append(errs, fmt.Errorf("unknown publisher driver %q", c.Publisher.Driver))
	}

	if c.Ingestion.MaxItemsPerSource <= 0 {
		errs = append(errs, errors.New("ingestion.maxItemsPerSource must be positive"))
	}
	if c.Ingestion.MaxNewPostsTotal <= 0 {
		errs = append(errs, errors.New("ingestion.maxNewPostsTotal must be positive"))
	}
	if c.Ingestion.QueueLeadMinutes < 0 {
		errs = append(errs, errors.New("ingestion.queueLeadMinutes must not be negative"))
	}
	if !validMinute(c.Schedule.IngestionMinute) || !validMinute(c.Schedule.PublishMinute) {
		errs = append(errs, errors.New("schedule minutes must be within 0-59"))
	}
	if c.Retry.Retries < 0 || c.Retry.Backoff < 0 || c.Retry.Timeout <= 0 {
		errs = append(errs, errors.New("retry settings out of range"))
	}
	if c.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; job trigger endpoints are unauthenticated")
	}
	return errors.Join(errs...)
}

func validMinute(m int) bool { return m >= 0 && m <= 59 }
