package provider

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/stretchr/testify/mock"
)

// mockRunner records the invocations made by a provider.
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) LookPath(file string) (string, error) {
	args := m.Called(file)
	return args.String(0), args.Error(1)
}

func (m *mockRunner) Run(ctx context.Context, name string, argv []string, stdin io.Reader) ([]byte, []byte, error) {
	var input string
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		input = string(b)
	}
	args := m.Called(ctx, name, argv, input)

	var stdout, stderr []byte
	if v := args.Get(0); v != nil {
		stdout = v.([]byte)
	}
	if v := args.Get(1); v != nil {
		stderr = v.([]byte)
	}
	return stdout, stderr, args.Error(2)
}

// missing makes LookPath fail for file.
func (m *mockRunner) missing(file string) *mock.Call {
	return m.On("LookPath", file).Return("", &exec.Error{Name: file, Err: exec.ErrNotFound})
}

// installed makes LookPath resolve file to /usr/bin/<file>.
func (m *mockRunner) installed(file string) *mock.Call {
	return m.On("LookPath", file).Return("/usr/bin/"+file, nil)
}

// outputArg returns the value following "-o" in argv.
func outputArg(argv []string) string {
	for i := 0; i+1 < len(argv); i++ {
		if argv[i] == "-o" {
			return argv[i+1]
		}
	}
	return ""
}

// writeOutput returns a Run side effect that writes data to the "-o" file.
func writeOutput(data []byte) func(mock.Arguments) {
	return func(args mock.Arguments) {
		argv := args.Get(2).([]string)
		_ = os.WriteFile(outputArg(argv), data, 0o644)
	}
}
