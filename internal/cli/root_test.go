package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "orderscan", cmd.Use)
	assert.Contains(t, cmd.Long, "session token")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"parse", "lookup", "search", "qr", "probe", "keygen", "hash-password"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestQRCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	qrCmd, _, err := cmd.Find([]string{"qr"})
	require.NoError(t, err)

	outputFlag := qrCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)

	targetFlag := qrCmd.Flags().Lookup("target")
	require.NotNil(t, targetFlag)
	assert.Equal(t, "admin", targetFlag.DefValue)
}

func TestKeygenCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	keygenCmd, _, err := cmd.Find([]string{"keygen"})
	require.NoError(t, err)

	outFlag := keygenCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "master.key", outFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"parse", "--format", "xml", "#1001"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "wrapped", errors.New("inner"))))
}

func TestOutputFormatter_YAML(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "yaml", Writer: buf}

	err := formatter.Success(KeygenResult{File: "master.key"}, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "file: master.key\n", buf.String())
}

func TestOutputFormatter_VerboseToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("GET %s", "/api/shop")
	assert.Empty(t, out.String())
	assert.Equal(t, "GET /api/shop\n", errOut.String())
}
