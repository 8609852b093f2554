package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const program = `
classes:
  - name: Lapp/Main
    methods:
      - name: main
        descriptor: ([Ljava/lang/String;)V
        static: true
        body: |
          v2 = invokestatic Ljava/lang/Class.forName(Ljava/lang/String;)Ljava/lang/Class; v1
          return
`

func writeProgram(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte(program), 0o644))
	return path
}

func TestRunAnalysis(t *testing.T) {
	c := &Config{Program: writeProgram(t), Parallelism: 1}
	result, err := runAnalysis(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, result.Report.Unresolved, 1)

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, result, c))
		require.Equal(t, "unresolved java.lang.Class.forName(java.lang.String)\n", buf.String())
	})

	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, result, &Config{Verbose: true}))
		require.Contains(t, buf.String(), "0 app.Main.main(java.lang.String[]) [Everywhere] (2) -> [1]")
		require.Contains(t, buf.String(), "1 java.lang.Class.forName(java.lang.String) [Type(?)] (1)")
		require.Contains(t, buf.String(), "(reflective target unknown; modeled as throwing)")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, result, &Config{JSON: true}))
		var out struct {
			Report struct {
				Unresolved []struct {
					Name string `json:"name"`
				} `json:"unresolved"`
				Stats struct {
					Nodes int `json:"nodes"`
				} `json:"stats"`
			} `json:"report"`
			Version string `json:"version"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		require.Equal(t, 2, out.Report.Stats.Nodes)
		require.Equal(t, "java.lang.Class.forName(java.lang.String)", out.Report.Unresolved[0].Name)
		require.Equal(t, version, out.Version)
	})

	t.Run("dot", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, result, &Config{DOT: true}))
		require.Contains(t, buf.String(), "digraph callgraph")
	})
}

func TestRunAnalysis_Errors(t *testing.T) {
	_, err := runAnalysis(context.Background(), &Config{Program: filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorContains(t, err, "loading program")

	_, err = runAnalysis(context.Background(), &Config{
		Program:    writeProgram(t),
		Exclusions: filepath.Join(t.TempDir(), "missing.txt"),
	})
	require.ErrorContains(t, err, "read exclusions")
}

func TestCodedError(t *testing.T) {
	cause := errors.New("boom")
	err := errWithCode(cause, exitError)

	var cErr codedError
	require.True(t, errors.As(err, &cErr))
	require.Equal(t, exitError, cErr.code)
	require.ErrorIs(t, err, cause)
	require.Empty(t, errWithCode(nil, exitUnresolvedFound).Error())
}
