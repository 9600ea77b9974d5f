package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/knotter/internal/engine"
	"github.com/roach88/knotter/internal/scene"
	"github.com/roach88/knotter/internal/store"
	"github.com/roach88/knotter/internal/validate"
)

// seedDB creates a SQLite log holding U1 (fixed) and D1 (dynamic) on
// globe "earth" and returns its path.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knotter.db")

	log, err := store.Open(store.DriverSQLite, path)
	require.NoError(t, err)
	defer log.Close()

	eng := engine.New(log, validate.DefaultRules(),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx := context.Background()
	_, err = eng.Insert(ctx, "earth", scene.BallEvent{
		IsFixed:  true,
		UUID:     "U1",
		Color:    scene.StringPtr("#FF0000FF"),
		Position: scene.VecPtr(0, 0, 1),
	})
	require.NoError(t, err)
	_, err = eng.Insert(ctx, "earth", scene.BallEvent{
		UUID:     "D1",
		Color:    scene.StringPtr("#00FF00FF"),
		Position: scene.VecPtr(1, 0, 0),
		Impulse:  scene.VecPtr(0, 0.5, 0),
	})
	require.NoError(t, err)
	return path
}

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
