package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles_EveryUpHasDown(t *testing.T) {
	entries, err := fs.ReadDir(Files(), "sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
			assert.True(t, names[down], "missing %s", down)
		}
	}
}

func TestFiles_OrdersSchemaGuards(t *testing.T) {
	raw, err := fs.ReadFile(Files(), "sql/000002_orders.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	assert.Contains(t, schema, "external_reference VARCHAR(150) NOT NULL UNIQUE")
	assert.Contains(t, schema, "REFERENCES orders (id) ON DELETE CASCADE")
	assert.Contains(t, schema, "REFERENCES products (id) ON DELETE SET NULL")
}
