//go:build !integration

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

	for _, name := range []string{"serve", "train", "analyze", "recommend", "predict", "chat", "runs", "fetch"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "census-insights", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestTrainCommand_Flags(t *testing.T) {
	flag := trainCmd.Flags().Lookup("no-store")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	top := analyzeCmd.Flags().Lookup("top")
	require.NotNil(t, top)
	assert.Equal(t, "5", top.DefValue)
	require.NotNil(t, analyzeCmd.Flags().Lookup("json"))
}

func TestRecommendCommand_Flags(t *testing.T) {
	flag := recommendCmd.Flags().Lookup("top")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestPredictCommand_Flags(t *testing.T) {
	require.NotNil(t, predictCmd.Flags().Lookup("feature"))
	require.NotNil(t, predictCmd.Flags().Lookup("models"))
	assert.ElementsMatch(t, sortedKeys(predictors), predictCmd.ValidArgs)
}

func TestChatCommand_Flags(t *testing.T) {
	require.NotNil(t, chatCmd.Flags().Lookup("session"))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}
}

func TestFetchCommand_Flags(t *testing.T) {
	flag := fetchCmd.Flags().Lookup("force")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
