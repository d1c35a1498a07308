package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := migrationNames(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])

	for _, name := range names {
		sql, err := migrationsFS.ReadFile("migrations/" + name)
		require.NoError(t, err)
		for _, line := range strings.Split(string(sql), "\n") {
			line = strings.TrimSpace(strings.ToUpper(line))
			if strings.HasPrefix(line, "CREATE TABLE") || strings.HasPrefix(line, "CREATE INDEX") || strings.HasPrefix(line, "CREATE UNIQUE INDEX") {
				assert.Contains(t, line, "IF NOT EXISTS", "%s: %s", name, line)
			}
		}
	}
}
