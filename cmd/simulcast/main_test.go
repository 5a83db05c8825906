package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SIMULCAST_DATABASE_PATH", ":memory:")
	t.Setenv("SIMULCAST_LOGGER_LEVEL", "error")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	cmd := newRootCommand()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"serve", "ingest", "migrate", "groups", "simulcasts", "admin"} {
		assert.Contains(t, names, want)
	}
}

func TestIngestCommand_NoPlatformsSucceeds(t *testing.T) {
	out, err := execute(t, "ingest")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SUCCEEDED: fetched=0"), out)
}

func TestMigrateCommand_DryRunListsPending(t *testing.T) {
	out, err := execute(t, "migrate", "--dry-run")

	require.NoError(t, err)
	assert.Contains(t, out, "001")
}

func TestAdminMerge_RejectsInvalidID(t *testing.T) {
	_, err := execute(t, "admin", "merge", "not-a-uuid", "also-not")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id")
}

func TestNumberRange(t *testing.T) {
	assert.Equal(t, "5", numberRange(5, 5))
	assert.Equal(t, "5-6", numberRange(5, 6))
}
