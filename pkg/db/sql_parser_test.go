/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQLStatementsHandlesDollarQuotedBlocks(t *testing.T) {
	content := `
-- Enable extension
CREATE EXTENSION IF NOT EXISTS pgcrypto;

DO $$
BEGIN
    PERFORM set_config('search_path', 'public', false);
    PERFORM do_something();
END $$;

SELECT 1;
`

	statements := splitSQLStatements(content)
	require.Len(t, statements, 3)
	assert.True(t, strings.HasPrefix(statements[1], "DO"))
	assert.Equal(t, "SELECT 1", statements[2])
}

func TestSplitSQLStatementsIgnoresSemicolonsInQuotesAndComments(t *testing.T) {
	content := `
INSERT INTO audit_logs(event) VALUES('a;b'); /* block; comment */
-- trailing; comment
DO $tag$
BEGIN
    PERFORM do_something('value;with;semicolons');
END $tag$;
`

	statements := splitSQLStatements(content)
	require.Len(t, statements, 2)
	assert.Equal(t, "INSERT INTO audit_logs(event) VALUES('a;b')", statements[0])
	assert.True(t, strings.HasSuffix(statements[1], "$tag$"))
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	names, err := pendingMigrations(migrationsFS, map[string]struct{}{})
	require.NoError(t, err)
	require.Equal(t, []string{"00001_audit_logs.up.sql", "00002_pending_revocations.up.sql"}, names)

	for _, name := range names {
		content, err := migrationsFS.ReadFile("migrations/" + name)
		require.NoError(t, err)
		assert.NotEmpty(t, splitSQLStatements(string(content)), name)
	}
}

func TestPendingMigrationsSkipsApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/00002_b.up.sql":   {Data: []byte("SELECT 2;")},
		"migrations/00001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/00001_a.down.sql": {Data: []byte("SELECT 0;")},
	}

	names, err := pendingMigrations(fsys, map[string]struct{}{"00001": {}})
	require.NoError(t, err)
	assert.Equal(t, []string{"00002_b.up.sql"}, names)
}
