package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/persistence"
)

func TestGeneratedMigrationsDefaultMarkerMatchesShippedFile(t *testing.T) {
	classifier, err := firewall.NewClassifier("")
	require.NoError(t, err)

	shipped, err := os.ReadFile(filepath.Join("..", "..", "migrations", persistence.RowLevelSecurityMigration))
	require.NoError(t, err)
	assert.Equal(t, string(shipped), generatedMigrations(classifier)[persistence.RowLevelSecurityMigration])
}

func TestGeneratedMigrationsFollowConfiguredMarker(t *testing.T) {
	classifier, err := firewall.NewClassifier("Public Safety")
	require.NoError(t, err)

	ddl := generatedMigrations(classifier)[persistence.RowLevelSecurityMigration]
	assert.Contains(t, ddl, "CHECK (is_sensitive = (category = 'Public Safety'))")
	assert.NotContains(t, ddl, "'GBV/Abuse'")
}
