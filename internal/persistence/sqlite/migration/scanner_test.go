package migration

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func TestFileScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string
		expectedOrder []string
		expectedErr   error
	}{
		{
			name: "sorts by numeric version",
			files: map[string]string{
				"010_add_index.sql":     "CREATE INDEX ix ON t(a);",
				"002_add_column.sql":    "ALTER TABLE t ADD COLUMN b TEXT;",
				"001_initial_table.sql": "CREATE TABLE t (a TEXT);",
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "ignores non-SQL files",
			files: map[string]string{
				"001_initial_table.sql": "CREATE TABLE t (a TEXT);",
				"README.md":             "# notes",
			},
			expectedOrder: []string{"001"},
		},
		{
			name:          "empty directory",
			files:         map[string]string{},
			expectedOrder: nil,
		},
		{
			name: "rejects malformed file names",
			files: map[string]string{
				"initial.sql": "CREATE TABLE t (a TEXT);",
			},
			expectedErr: ErrInvalidMigrationFile,
		},
		{
			name: "rejects duplicate versions",
			files: map[string]string{
				"001_a.sql": "CREATE TABLE a (x TEXT);",
				"001_b.sql": "CREATE TABLE b (x TEXT);",
			},
			expectedErr: ErrDuplicateVersion,
		},
		{
			name: "rejects comment-only files",
			files: map[string]string{
				"001_empty.sql": "-- nothing here\n",
			},
			expectedErr: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrations, err := NewFileScanner(mapFS(tt.files), ".").ScanMigrations()
			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectedErr), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)

			var versions []string
			for _, m := range migrations {
				versions = append(versions, m.Version)
				assert.NotEmpty(t, m.Checksum)
			}
			assert.Equal(t, tt.expectedOrder, versions)
		})
	}
}

func TestFileScanner_ScanMigrationsSubdirectory(t *testing.T) {
	fsys := mapFS(map[string]string{
		"migrations/001_initial_table.sql": "CREATE TABLE t (a TEXT);",
	})

	migrations, err := NewFileScanner(fsys, "migrations").ScanMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, "migrations/001_initial_table.sql", migrations[0].FilePath)
	assert.Equal(t, "initial table", migrations[0].Description)
}

func TestSplitStatements(t *testing.T) {
	sqlText := `
-- create the table
CREATE TABLE t (
    a TEXT
);

-- and an index
CREATE INDEX ix_t_a ON t (a);
`
	statements := splitStatements(sqlText)
	require.Len(t, statements, 2)
	assert.Equal(t, "CREATE TABLE t (\na TEXT\n)", statements[0])
	assert.Equal(t, "CREATE INDEX ix_t_a ON t (a)", statements[1])
}
