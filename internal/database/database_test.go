package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletwise/walletwise/internal/config"
)

func TestDsn(t *testing.T) {
	// given
	cfg := config.Database{Host: "db.internal", Port: 6543, User: "ledger", Pass: "p@ss'w/rd", Name: "walletwise", Schema: "books"}

	// when
	parsed, err := url.Parse(dsn(cfg))

	// then
	require.NoError(t, err)
	assert.Equal(t, "postgres", parsed.Scheme)
	assert.Equal(t, "db.internal:6543", parsed.Host)
	assert.Equal(t, "/walletwise", parsed.Path)
	assert.Equal(t, "ledger", parsed.User.Username())
	password, _ := parsed.User.Password()
	assert.Equal(t, "p@ss'w/rd", password)
	assert.Equal(t, "books", parsed.Query().Get("search_path"))
	assert.Equal(t, "disable", parsed.Query().Get("sslmode"))
}
