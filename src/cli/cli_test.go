package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bankflow-server/src/config"
	"bankflow-server/src/fetch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "ingest", "import", "search", "reclassify"}, names)
}

func execute(args ...string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.Execute()
}

func TestIngestCommand_RequiresDates(t *testing.T) {
	err := execute("ingest", "--from", "2024-01-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to")
}

func TestIngestCommand_RejectsInvertedRange(t *testing.T) {
	err := execute("ingest", "--from", "2024-02-01", "--to", "2024-01-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after")
}

func TestIngestCommand_RejectsBadAccount(t *testing.T) {
	err := execute("ingest", "--from", "2024-01-01", "--to", "2024-01-31", "--account", "a b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid account id")
}

func TestImportCommand_RequiresFile(t *testing.T) {
	err := execute("import")
	assert.Error(t, err)
}

func TestReadStatementPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"booked":[{"transactionId":"TX1","bookingDate":"2024-01-15"}]}`), 0o600))

	records, err := readStatementPage(nil, path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TX1", records[0].TransactionID)

	records, err = readStatementPage(strings.NewReader(`{"booked":[]}`), "-")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = readStatementPage(strings.NewReader(`{}`), "-")
	assert.Error(t, err)

	_, err = readStatementPage(nil, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSearchCommand_RejectsBadCategory(t *testing.T) {
	err := execute("search", "--category", "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid category")
}

func TestSearchCommand_DatesTogether(t *testing.T) {
	err := execute("search", "--from", "2024-01-01")
	assert.Error(t, err)
}

func TestNewFetcher(t *testing.T) {
	f, err := newFetcher(config.Config{StatementSource: config.SourceStatement, StatementAPIURL: "http://localhost"})
	require.NoError(t, err)
	assert.IsType(t, &fetch.StatementClient{}, f)

	f, err = newFetcher(config.Config{StatementSource: config.SourcePlaid, PlaidClientID: "id", PlaidSecret: "s", PlaidEnv: "sandbox"})
	require.NoError(t, err)
	assert.IsType(t, &fetch.PlaidFetcher{}, f)

	_, err = newFetcher(config.Config{StatementSource: config.SourcePlaid, PlaidEnv: "staging"})
	assert.Error(t, err)

	_, err = newFetcher(config.Config{StatementSource: "ftp"})
	assert.Error(t, err)
}

func TestRemoteAuth(t *testing.T) {
	auth := remoteAuth(config.Config{StatementBearerToken: "tok", PSUID: "psu", ConsentID: "consent", PlaidAccessToken: "access"})
	assert.Equal(t, "tok", auth.BearerToken)
	assert.Equal(t, "psu", auth.PSUID)
	assert.Equal(t, "consent", auth.ConsentID)
	assert.Equal(t, "access", auth.AccessToken)
}
