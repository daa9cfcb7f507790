package conformance

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/automl/fetch"
)

// TestDefaultScenariosRemote fits the benchmark datasets. It downloads them,
// so it only runs with AUTOML_REMOTE_TESTS=1.
func TestDefaultScenariosRemote(t *testing.T) {
	if os.Getenv("AUTOML_REMOTE_TESTS") != "1" {
		t.Skip("set AUTOML_REMOTE_TESTS=1 to fetch the benchmark datasets")
	}
	h := New(fetch.New(fetch.DefaultCacheDir(), nil))
	for _, s := range DefaultScenarios() {
		t.Run(s.Name, func(t *testing.T) {
			result, err := h.Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
