package contracts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/compose-network/contract-deployer/internal/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) EnsureImage(ctx context.Context, imageName string) error {
	return m.Called(ctx, imageName).Error(0)
}

func (m *mockRunner) Run(ctx context.Context, opts docker.RunOptions) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func newHardhatProjectDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hardhat.config.js"), []byte("module.exports = {};\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "artifacts", "stale"), 0755))

	return dir
}

func TestCompilerCompile(t *testing.T) {
	dir := newHardhatProjectDir(t)

	runner := new(mockRunner)
	runner.On("EnsureImage", mock.Anything, "node:20").Return(nil)
	runner.On("Run", mock.Anything, mock.MatchedBy(func(opts docker.RunOptions) bool {
		return opts.Image == "node:20" &&
			opts.WorkDir == containerProjectDir &&
			len(opts.CopyIn) == 1 && opts.CopyIn[0].HostDir == dir &&
			assert.ObjectsAreEqual(projectExcludes, opts.CopyIn[0].Exclude) &&
			len(opts.CopyOut) == 1 && opts.CopyOut[0].ContainerPath == "/project/artifacts" &&
			opts.CopyOut[0].HostDir == dir
	})).Return("", nil)

	artifactsDir, err := NewCompiler(dir, "node:20", runner).Compile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "artifacts"), artifactsDir)

	_, err = os.Stat(filepath.Join(dir, "artifacts", "stale"))
	assert.True(t, os.IsNotExist(err), "stale artifacts must be removed before compiling")

	runner.AssertExpectations(t)
}

func TestCompilerCompileRequiresHardhatProject(t *testing.T) {
	runner := new(mockRunner)

	_, err := NewCompiler(t.TempDir(), "node:20", runner).Compile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hardhat config")

	runner.AssertNotCalled(t, "EnsureImage", mock.Anything, mock.Anything)
}

func TestCompilerCompileFailure(t *testing.T) {
	dir := newHardhatProjectDir(t)

	runner := new(mockRunner)
	runner.On("EnsureImage", mock.Anything, "node:20").Return(nil)
	runner.On("Run", mock.Anything, mock.Anything).Return("", errors.New("container exited with code 1"))

	_, err := NewCompiler(dir, "node:20", runner).Compile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hardhat compile failed")
}
