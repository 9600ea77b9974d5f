package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knotter/internal/globeid"
)

func TestGlobeIDCommand(t *testing.T) {
	out, err := execute(t, "globe-id", "--db", seedDB(t))
	require.NoError(t, err)

	id := strings.TrimSpace(out)
	normalized, err := globeid.Normalize(id)
	require.NoError(t, err)
	assert.Equal(t, id, normalized)
	assert.Len(t, id, 10)
}

func TestGlobeIDCommandJSON(t *testing.T) {
	out, err := execute(t, "globe-id", "--driver", "memory", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.Data["new_globe_id"])
}
