package database

import (
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}
	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		if byVersion[match[1]] == nil {
			byVersion[match[1]] = map[string]bool{}
		}
		require.False(t, byVersion[match[1]][match[2]], "duplicate %s migration for version %s", match[2], match[1])
		byVersion[match[1]][match[2]] = true
	}

	require.NotEmpty(t, byVersion)
	for version, dirs := range byVersion {
		assert.True(t, dirs["up"] && dirs["down"], "version %s must include both up and down files", version)
	}
}

func TestEmbeddedMigrationsAreOrderedUpFiles(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.up.sql", names[0])
	assert.IsNonDecreasing(t, names)

	contents, err := migrationFiles.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.Contains(t, string(contents), "ancestor_chain TEXT[]")
}
