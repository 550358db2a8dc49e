package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o600))
	return dir
}

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("SHEETS_BEST_API_KEY", "secret")
	t.Setenv("SHEETS_BEST_URL", "https://store.example/sources")
	t.Setenv("SHEETS_BEST_POSTS_URL", "https://store.example/posts")
	t.Setenv("SHEETS_BEST_QUEUE_URL", "https://store.example/queue")
	t.Setenv("SHEETS_BEST_LOGS_URL", "https://store.example/logs")
	t.Setenv("SHEETS_BEST_REVENUE_URL", "https://store.example/revenue")
	t.Setenv("APP_PORT", "")
	t.Setenv("PORT", "8081")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LOG_FORMAT", "")

	dir := writeConfig(t, `{"logger": {"format": "text"}, "retry": {"backoff": "250ms"}}`)

	c, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, StoreSheetsBest, c.Store.Driver)
	assert.Equal(t, "secret", c.Store.SheetsBest.APIKey)
	assert.Equal(t, "https://store.example/sources", c.Store.SheetsBest.SourcesURL)
	assert.Equal(t, 8081, c.App.Port)
	assert.Equal(t, "text", c.Logger.Format)

	assert.Equal(t, 5, c.Ingestion.MaxItemsPerSource)
	assert.Equal(t, 25, c.Ingestion.MaxNewPostsTotal)
	assert.Equal(t, 30, c.Ingestion.QueueLeadMinutes)
	assert.Equal(t, "twitter", c.Ingestion.DefaultPlatform)
	assert.Equal(t, 5, c.Schedule.IngestionMinute)
	assert.Equal(t, 0, c.Schedule.PublishMinute)
	assert.Equal(t, 2, c.Retry.Retries)
	assert.Equal(t, 250*time.Millisecond, c.Retry.Backoff)
	assert.Equal(t, 10*time.Second, c.Retry.Timeout)
	assert.True(t, c.Dedup.BodyContainment)
}

func TestLoad_MissingStoreSettingsPreventStartup(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("SHEETS_BEST_API_KEY", "")
	t.Setenv("SHEETS_BEST_URL", "https://store.example/sources")
	t.Setenv("SHEETS_BEST_POSTS_URL", "")
	t.Setenv("SHEETS_BEST_QUEUE_URL", "")
	t.Setenv("SHEETS_BEST_LOGS_URL", "")
	t.Setenv("SHEETS_BEST_REVENUE_URL", "")

	dir := writeConfig(t, `{}`)

	c, err := Load(dir)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "SHEETS_BEST_API_KEY")
	assert.Contains(t, err.Error(), "SHEETS_BEST_REVENUE_URL")
	assert.NotContains(t, err.Error(), "(SHEETS_BEST_URL)")
}

func TestValidate_DriverSpecific(t *testing.T) {
	base := func() Config {
		return Config{
			Ingestion: Ingestion{MaxItemsPerSource: 5, MaxNewPostsTotal: 25, QueueLeadMinutes: 30},
			Schedule:  Schedule{IngestionMinute: 5},
			Retry:     Retry{Retries: 2, Backoff: time.Second, Timeout: time.Second},
			Publisher: Publisher{Driver: PublisherNoop},
		}
	}

	c := base()
	c.Store.Driver = StorePostgres
	c.Database.Psql.URL = "postgres://localhost/content"
	assert.NoError(t, c.Validate())

	c = base()
	c.Store.Driver = StoreMongo
	assert.ErrorContains(t, c.Validate(), "database.mongo.host")

	c = base()
	c.Store.Driver = "excel"
	assert.ErrorContains(t, c.Validate(), "unknown store driver")

	c = base()
	c.Store.Driver = StoreGoogleSheets
	c.GoogleSheet.SpreadsheetId = "sheet"
	c.Publisher.Driver = PublisherPubSub
	c.Pubsub.ProjectID = "proj"
	assert.ErrorContains(t, c.Validate(), "pubsub.topicID")

	c = base()
	c.Store.Driver = StoreMSSQL
	c.Database.Mssql.Host = "db"
	c.Schedule.PublishMinute = 60
	assert.ErrorContains(t, c.Validate(), "schedule minutes")
}

func TestLoadEnvFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nexport CP_TEST_A=\"one\"\nCP_TEST_B=two\nnot-a-pair\n"), 0o600))
	t.Setenv("CP_TEST_B", "kept")
	os.Unsetenv("CP_TEST_A")
	defer os.Unsetenv("CP_TEST_A")

	n := LoadEnvFromFile(path, filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, 1, n)
	assert.Equal(t, "one", os.Getenv("CP_TEST_A"))
	assert.Equal(t, "kept", os.Getenv("CP_TEST_B"))
}
