package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

type testHarness struct {
	env     *Env
	stdout  *syncBuffer
	stderr  *syncBuffer
	config  *mockConfigLoader
	migrate *mockMigrator
	backend *mockBackendFactory
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		stdout:  &syncBuffer{},
		stderr:  &syncBuffer{},
		config:  &mockConfigLoader{},
		migrate: &mockMigrator{},
		backend: newMockBackendFactory(),
	}
	h.env = NewEnv(
		WithStdin(strings.NewReader("")),
		WithStdout(h.stdout),
		WithStderr(h.stderr),
		WithGetenv(func(string) string { return "" }),
		WithConfigLoader(h.config),
		WithMigrator(h.migrate),
		WithBackendFactory(h.backend),
		WithLoggerFactory(func(bool) (*zap.SugaredLogger, error) { return zap.NewNop().Sugar(), nil }),
	)
	return h
}

// execute runs cmd with args and returns its error.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}
