package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/astroguard/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, Validate(migrations.FS))

	list, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "000001_create_items", list[0].String())
	assert.Equal(t, "000002_create_uploaded_images", list[1].String())
}

func TestCreateMigration_NumbersSequentially(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "Create Items", "items table")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_items.up.sql"), first.UpPath)

	second, err := CreateMigration(dir, "add-name key!", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, filepath.Join(dir, "000002_add_name_key.down.sql"), second.DownPath)

	content, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- Description: items table")

	require.NoError(t, Validate(os.DirFS(dir)))
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "  --  ", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_b.up.sql":     {},
		"000001_a.up.sql":     {},
		"000001_a.down.sql":   {},
		"README.md":           {},
		"notes.sql":           {},
		"x_y.up.sql":          {},
		"sub/000003_c.up.sql": {},
	}

	list, err := ListMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, Migration{Version: 1, Name: "a", HasUp: true, HasDown: true}, list[0])
	assert.Equal(t, Migration{Version: 2, Name: "b", HasUp: true}, list[1])

	assert.Error(t, Validate(fsys))
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	list, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestValidate_GapInVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"000001_a.up.sql":   {},
		"000001_a.down.sql": {},
		"000003_c.up.sql":   {},
		"000003_c.down.sql": {},
	}
	assert.ErrorContains(t, Validate(fsys), "not contiguous")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "create_items", sanitizeName("Create Items"))
	assert.Equal(t, "add_name_key", sanitizeName("--add  name__key--"))
	assert.Equal(t, "", sanitizeName("!!"))
}
