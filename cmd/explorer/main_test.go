// file: cmd/explorer/main_test.go

package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setConfigDefaults()

	assert.Equal(t, 8080, viper.GetInt("server.port"))
	assert.Equal(t, "instance/catalog.db", viper.GetString("catalog.path"))
	assert.Equal(t, 15, viper.GetInt("datastore.pool_size"))
	assert.Equal(t, 100, viper.GetInt("datastore.max_overflow"))
	assert.Equal(t, 3600, viper.GetInt("datastore.pool_recycle"))
	assert.False(t, viper.GetBool("datastore.echo"))
	assert.False(t, viper.GetBool("datastore.echo_pool"))
}

func TestSetConfigDefaults_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("EXPLORER_CATALOG_PATH", "/var/lib/gwexplorer/catalog.db")
	t.Setenv("EXPLORER_DATASTORE_POOL_SIZE", "40")
	setConfigDefaults()

	assert.Equal(t, "/var/lib/gwexplorer/catalog.db", viper.GetString("catalog.path"))
	assert.Equal(t, 40, viper.GetInt("datastore.pool_size"))

	var config Config
	require.NoError(t, viper.Unmarshal(&config))
	assert.Equal(t, "/var/lib/gwexplorer/catalog.db", config.Catalog.Path)
	assert.Equal(t, 40, config.Datastore.PoolSize)
}

func TestGenSetupToken(t *testing.T) {
	tok1 := genSetupToken()
	tok2 := genSetupToken()
	assert.Len(t, tok1, 32)
	assert.NotEqual(t, tok1, tok2)
}
