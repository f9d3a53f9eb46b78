package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaStatements_VectorIndex(t *testing.T) {
	stmts := strings.Join(schemaStatements(768), "\n")
	require.Contains(t, stmts, "embedding vector(768)")
	require.Contains(t, stmts, "USING hnsw (embedding vector_cosine_ops)")
	require.NotContains(t, stmts, "USING ivfflat")
}
