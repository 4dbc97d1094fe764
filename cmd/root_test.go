package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"search", "contacts", "serve", "migrate", "cache"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "jobsearch-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestSearchCommand_Flags(t *testing.T) {
	for _, name := range []string{"keywords", "location", "work-type", "max", "min"} {
		require.NotNil(t, searchCmd.Flags().Lookup(name), "search should have --%s", name)
	}
	assert.Equal(t, "0", searchCmd.Flags().Lookup("max").DefValue)
}

func TestContactsCommand_Flags(t *testing.T) {
	for _, name := range []string{"company", "website", "linkedin", "title", "max", "min"} {
		require.NotNil(t, contactsCmd.Flags().Lookup(name), "contacts should have --%s", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	sweep := serveCmd.Flags().Lookup("sweep-interval")
	require.NotNil(t, sweep)
	assert.Equal(t, "1h0m0s", sweep.DefValue)
}

func TestCacheCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range cacheCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["sweep"])
	assert.True(t, names["invalidate"])
}
