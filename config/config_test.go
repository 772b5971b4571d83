package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProperties = `
nodename=primary, replica,broken

primary.url=jdbc:mysql://db1.example:3306/app
primary.driver=com.mysql.cj.jdbc.Driver
primary.user=app
primary.password=s3cr${et}
primary.minconnections=2
primary.initconnections=2
primary.maxconnections=3
primary.conninterval=250
primary.timeout=1000

replica.url=postgres://db2.example:5432/app
replica.driver=pgx
replica.user=reader
replica.password=
replica.minconnections=many
replica.maxconnections=0
replica.conninterval=-5

broken.driver=mysql
broken.user=app
broken.password=pw

maintenance.interval=2000
`

func readSample(t *testing.T) *Source {
	t.Helper()
	src, err := Read(strings.NewReader(sampleProperties), "properties")
	require.NoError(t, err)
	return src
}

func TestDefaultNodeConfig(t *testing.T) {
	t.Run("DefaultValues", func(t *testing.T) {
		cfg := DefaultNodeConfig("n1")

		assert.Equal(t, "n1", cfg.Name)
		assert.Equal(t, 5, cfg.MinConnections)
		assert.Equal(t, 5, cfg.InitConnections)
		assert.Equal(t, 30, cfg.MaxConnections)
		assert.Equal(t, 500*time.Millisecond, cfg.WaitInterval)
		assert.Equal(t, 2000*time.Millisecond, cfg.Timeout)
	})

	t.Run("StringHidesPassword", func(t *testing.T) {
		cfg := DefaultNodeConfig("n1")
		cfg.Password = "hunter2"
		assert.NotContains(t, cfg.String(), "hunter2")
	})
}

func TestSourceNodeNames(t *testing.T) {
	src := readSample(t)
	assert.Equal(t, []string{"primary", "replica", "broken"}, src.NodeNames())
}

func TestSourceNode(t *testing.T) {
	src := readSample(t)

	t.Run("FullyConfigured", func(t *testing.T) {
		cfg, err := src.Node("primary")
		require.NoError(t, err)

		assert.Equal(t, "jdbc:mysql://db1.example:3306/app", cfg.URL)
		assert.Equal(t, "com.mysql.cj.jdbc.Driver", cfg.Driver)
		assert.Equal(t, "app", cfg.User)
		assert.Equal(t, "s3cr${et}", cfg.Password)
		assert.Equal(t, 2, cfg.MinConnections)
		assert.Equal(t, 2, cfg.InitConnections)
		assert.Equal(t, 3, cfg.MaxConnections)
		assert.Equal(t, 250*time.Millisecond, cfg.WaitInterval)
		assert.Equal(t, 1000*time.Millisecond, cfg.Timeout)
	})

	t.Run("MalformedNumbersFallBack", func(t *testing.T) {
		cfg, err := src.Node("replica")
		require.NoError(t, err)

		assert.Equal(t, "", cfg.Password)
		assert.Equal(t, DefaultMinConnections, cfg.MinConnections)
		assert.Equal(t, DefaultInitConnections, cfg.InitConnections)
		assert.Equal(t, DefaultMaxConnections, cfg.MaxConnections)
		assert.Equal(t, DefaultWaitInterval, cfg.WaitInterval)
		assert.Equal(t, DefaultTimeout, cfg.Timeout)
	})

	t.Run("MissingURL", func(t *testing.T) {
		_, err := src.Node("broken")
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
		assert.ErrorIs(t, err, ErrMissingField)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "broken", cfgErr.Node)
		assert.Equal(t, KeyURL, cfgErr.Field)
	})

	t.Run("UnknownNode", func(t *testing.T) {
		_, err := src.Node("ghost")
		assert.True(t, IsConfigError(err))
	})
}

func TestSourceEnvOverride(t *testing.T) {
	t.Setenv("NODEPOOL_PRIMARY_MAXCONNECTIONS", "7")

	src := readSample(t)
	cfg, err := src.Node("primary")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxConnections)
}

func TestSourceSchedule(t *testing.T) {
	schedule := readSample(t).Schedule()
	assert.Equal(t, DefaultMaintenanceDelay, schedule.MaintenanceDelay)
	assert.Equal(t, 2*time.Second, schedule.MaintenanceInterval)
	assert.Equal(t, DefaultStatsInterval, schedule.StatsInterval)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	yaml := `
nodename: [primary]
primary:
  url: "file:test.db"
  driver: sqlite3
  user: ""
  password: ""
  maxconnections: 4
  timeout: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	src, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"primary"}, src.NodeNames())

	cfg, err := src.Node("primary")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, 4, cfg.MaxConnections)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
}

func TestLoadPropertiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataBase.properties")
	require.NoError(t, os.WriteFile(path, []byte(sampleProperties), 0o600))

	src, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, src.NodeNames(), 3)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
