package harness

import (
	"os"
	"path/filepath"
	"testing"

	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcg/pkg/exclude"
	"github.com/715d/reflectcg/pkg/reflectcg"
)

// LoadProgram loads the program.yaml of the test case in dir.
func LoadProgram(dir string) (*reflectcg.Program, error) {
	return reflectcg.LoadProgram(filepath.Join(dir, "program.yaml"))
}

// LoadExclusions loads the exclusions file name of the test case in dir. An
// empty name yields no exclusions.
func LoadExclusions(t *testing.T, dir, name string) *exclude.Set {
	t.Helper()
	if name == "" {
		return nil
	}
	set, err := exclude.Load(filepath.Join(dir, name))
	require.NoError(t, err)
	return set
}

// LoadTestCase loads a test case from a directory with a specified testdata root.
func LoadTestCase(t *testing.T, dir, root string) *TestCase {
	t.Helper()
	yamlPath := filepath.Join(dir, "expected.yaml")

	tc := &TestCase{}
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	err = yaml.Unmarshal(data, tc)
	require.NoError(t, err)

	// Use relative path from testdata root if provided.
	if root != "" {
		relPath, err := filepath.Rel(root, dir)
		if err != nil {
			tc.Dir = filepath.Base(dir)
		} else {
			tc.Dir = relPath
		}
		return tc
	}

	tc.Dir = filepath.Base(dir)
	return tc
}
