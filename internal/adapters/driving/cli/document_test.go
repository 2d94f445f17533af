package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Document Command Tests

func TestDocumentCmd_Use(t *testing.T) {
	assert.Equal(t, "document", documentCmd.Use)
}

func TestDocumentCmd_Short(t *testing.T) {
	assert.Equal(t, "Manage documents and their chunks", documentCmd.Short)
}

func TestDocumentCmd_HasSubcommands(t *testing.T) {
	commands := documentCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "add")
	assert.Contains(t, commandNames, "list")
	assert.Contains(t, commandNames, "show")
	assert.Contains(t, commandNames, "duplicate")
	assert.Contains(t, commandNames, "delete")
	assert.Contains(t, commandNames, "dump")
	assert.Contains(t, commandNames, "stats")
}

// Document Add Tests

func TestDocumentAddCmd_Use(t *testing.T) {
	assert.Equal(t, "add [title]", documentAddCmd.Use)
}

func TestDocumentAddCmd_HasSourceFlag(t *testing.T) {
	flag := documentAddCmd.Flags().Lookup("source")
	require.NotNil(t, flag, "source flag should exist")
	assert.Equal(t, "s", flag.Shorthand)
}

func TestDocumentAddCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"document", "add", "Release Notes", "--source", "file:///rn.md"})
	defer func() {
		rootCmd.SetArgs(nil)
		documentSource = ""
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Created document")
}

func TestDocumentAddCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"document", "add"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

// Document List Tests

func TestDocumentListCmd_Use(t *testing.T) {
	assert.Equal(t, "list", documentListCmd.Use)
}

func TestDocumentListCmd_HasPagingFlags(t *testing.T) {
	limit := documentListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit, "limit flag should exist")
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "50", limit.DefValue)

	offset := documentListCmd.Flags().Lookup("offset")
	require.NotNil(t, offset, "offset flag should exist")
	assert.Equal(t, "0", offset.DefValue)
}

func TestDocumentListCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"document", "list"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Test Document 1")
	assert.Contains(t, buf.String(), "Total: 1 documents")
}

// Document Show Tests

func TestDocumentShowCmd_Use(t *testing.T) {
	assert.Equal(t, "show [doc-id]", documentShowCmd.Use)
}

func TestDocumentShowCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"document", "show", testDocID})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Test Document 1")
	assert.Contains(t, buf.String(), "Chunks (1)")
}

func TestDocumentShowCmd_UnknownDocument(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"document", "show", "missing"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}

// Document Duplicate Tests

func TestDocumentDuplicateCmd_Use(t *testing.T) {
	assert.Equal(t, "duplicate [doc-id]", documentDuplicateCmd.Use)
}

func TestDocumentDuplicateCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"document", "duplicate", testDocID, "--title", "Copied"})
	defer func() {
		rootCmd.SetArgs(nil)
		documentTitle = ""
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Duplicated document")
	assert.Contains(t, buf.String(), "unsynced")
}

// Document Delete Tests

func TestDocumentDeleteCmd_Use(t *testing.T) {
	assert.Equal(t, "delete [doc-id]...", documentDeleteCmd.Use)
}

func TestDocumentDeleteCmd_HasHardFlag(t *testing.T) {
	flag := documentDeleteCmd.Flags().Lookup("hard")
	require.NotNil(t, flag, "hard flag should exist")
	assert.Equal(t, "false", flag.DefValue)
}

func TestDocumentDeleteCmd_SoftDeleteReportsPartialFailure(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"document", "delete", testDocID, "missing"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Deleted 1 of 2 documents.")
	assert.Contains(t, buf.String(), "failed: missing")
}

func TestDocumentDeleteCmd_Hard(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"document", "delete", "--hard", testDocID})
	defer func() {
		rootCmd.SetArgs(nil)
		documentHard = false
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "index vectors removed")
}

// Document Dump Tests

func TestDocumentDumpCmd_Use(t *testing.T) {
	assert.Equal(t, "dump [doc-id]", documentDumpCmd.Use)
}

func TestDocumentDumpCmd_EmitsJSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"document", "dump", testDocID})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "\"document\"")
	assert.Contains(t, buf.String(), "\"chunks\"")
	// Document fields carry no JSON tags, so they keep their Go names.
	assert.Contains(t, buf.String(), "\"Title\": \"Test Document 1\"")
	assert.Contains(t, buf.String(), "hello embedsync world")
}

// Document Stats Tests

func TestDocumentStatsCmd_Use(t *testing.T) {
	assert.Equal(t, "stats [doc-id]", documentStatsCmd.Use)
}

func TestDocumentStatsCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"document", "stats", testDocID})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Chunks:      1")
	assert.Contains(t, buf.String(), "Embeddings:  1")
	assert.Contains(t, buf.String(), "Unsynced:    1")
}
