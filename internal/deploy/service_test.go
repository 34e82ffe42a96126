package deploy

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/compose-network/contract-deployer/internal/chain"
	"github.com/compose-network/contract-deployer/internal/explorer"
	"github.com/compose-network/contract-deployer/internal/vrf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChain struct {
	mock.Mock
}

func (m *mockChain) GetFactory(contractName string) (chain.ContractFactory, error) {
	args := m.Called(contractName)
	factory, _ := args.Get(0).(chain.ContractFactory)
	return factory, args.Error(1)
}

type mockFactory struct {
	mock.Mock
}

func (m *mockFactory) Deploy(ctx context.Context, args ...any) (chain.Deployment, error) {
	ret := m.Called(ctx, args)
	return ret.Get(0).(chain.Deployment), ret.Error(1)
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) WaitIndexed(ctx context.Context, address common.Address) error {
	return m.Called(ctx, address).Error(0)
}

func (m *mockVerifier) Verify(ctx context.Context, address common.Address, args []any) error {
	return m.Called(ctx, address, args).Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Generate(ctx context.Context, deployment chain.Deployment, params vrf.Parameters) error {
	return m.Called(ctx, deployment, params).Error(0)
}

const contractName = "RandomWinnerGame"

var (
	testParams = vrf.Parameters{
		Coordinator: common.HexToAddress("0x8C7382F9D8f56b33781fE506E897a4F1e2d17255"),
		LinkToken:   common.HexToAddress("0x326C977E6efc84E512bB9C30f76E30c160eD06FB"),
		KeyHash:     common.HexToHash("0x6e75b569a01ef56d18cab6a8e71e6600d6ce853834d4a5748b720d06f878b3a4"),
		Fee:         big.NewInt(100000000000000),
	}

	testDeployment = chain.Deployment{
		ContractName: contractName,
		ChainID:      big.NewInt(80001),
		Address:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		TxHash:       common.HexToHash("0xabc"),
		BlockNumber:  7,
	}
)

type runResult struct {
	deployment chain.Deployment
	err        error
}

// runPastDelay runs d and advances the fake clock over the indexing delay once Run sleeps.
func runPastDelay(t *testing.T, d *Deployer, fakeClock *clockwork.FakeClock, beforeAdvance func()) runResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		deployment, err := d.Run(ctx, contractName, testParams)
		done <- runResult{deployment, err}
	}()

	require.NoError(t, fakeClock.BlockUntilContext(ctx, 1))
	if beforeAdvance != nil {
		beforeAdvance()
	}
	fakeClock.Advance(IndexingDelay)

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		t.Fatal("deployer did not finish")
		return runResult{}
	}
}

func newMocks() (*mockChain, *mockFactory, *mockVerifier) {
	factory := new(mockFactory)
	chainClient := new(mockChain)
	chainClient.On("GetFactory", contractName).Return(factory, nil)

	return chainClient, factory, new(mockVerifier)
}

func TestDeployerRun(t *testing.T) {
	chainClient, factory, verifier := newMocks()
	factory.On("Deploy", mock.Anything, testParams.Args()).Return(testDeployment, nil)
	verifier.On("WaitIndexed", mock.Anything, testDeployment.Address).Return(nil)
	verifier.On("Verify", mock.Anything, testDeployment.Address, testParams.Args()).Return(nil)

	fakeClock := clockwork.NewFakeClock()
	start := fakeClock.Now()
	d := NewDeployer(chainClient, verifier, WithClock(fakeClock))

	result := runPastDelay(t, d, fakeClock, func() {
		verifier.AssertNotCalled(t, "WaitIndexed", mock.Anything, mock.Anything)
		verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
	})

	require.NoError(t, result.err)
	assert.Equal(t, testDeployment, result.deployment)
	assert.GreaterOrEqual(t, fakeClock.Since(start), IndexingDelay)

	chainClient.AssertExpectations(t)
	factory.AssertExpectations(t)
	verifier.AssertExpectations(t)
}

func TestDeployerRunPassesArgumentsInConstructorOrder(t *testing.T) {
	chainClient, factory, verifier := newMocks()

	var deployedWith, verifiedWith []any
	factory.On("Deploy", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { deployedWith = args.Get(1).([]any) }).
		Return(testDeployment, nil)
	verifier.On("WaitIndexed", mock.Anything, mock.Anything).Return(nil)
	verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { verifiedWith = args.Get(2).([]any) }).
		Return(nil)

	fakeClock := clockwork.NewFakeClock()
	result := runPastDelay(t, NewDeployer(chainClient, verifier, WithClock(fakeClock)), fakeClock, nil)
	require.NoError(t, result.err)

	require.Len(t, deployedWith, 4)
	assert.Equal(t, testParams.Coordinator, deployedWith[0])
	assert.Equal(t, testParams.LinkToken, deployedWith[1])
	assert.Equal(t, [32]byte(testParams.KeyHash), deployedWith[2])
	assert.Equal(t, testParams.Fee, deployedWith[3])
	assert.Equal(t, deployedWith, verifiedWith)
}

func TestDeployerRunDeployFailure(t *testing.T) {
	chainClient, factory, verifier := newMocks()
	factory.On("Deploy", mock.Anything, mock.Anything).Return(chain.Deployment{}, errors.New("insufficient funds for gas"))

	fakeClock := clockwork.NewFakeClock()
	start := fakeClock.Now()

	_, err := NewDeployer(chainClient, verifier, WithClock(fakeClock)).Run(context.Background(), contractName, testParams)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")

	verifier.AssertNotCalled(t, "WaitIndexed", mock.Anything, mock.Anything)
	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, start, fakeClock.Now())
}

func TestDeployerRunUnknownContract(t *testing.T) {
	chainClient := new(mockChain)
	chainClient.On("GetFactory", contractName).Return(nil, chain.ErrUnknownContract)
	verifier := new(mockVerifier)

	_, err := NewDeployer(chainClient, verifier, WithClock(clockwork.NewFakeClock())).Run(context.Background(), contractName, testParams)
	assert.True(t, errors.Is(err, chain.ErrUnknownContract))
	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeployerRunVerifyFailureStillLogsAddress(t *testing.T) {
	chainClient, factory, verifier := newMocks()
	factory.On("Deploy", mock.Anything, mock.Anything).Return(testDeployment, nil)
	verifier.On("WaitIndexed", mock.Anything, mock.Anything).Return(nil)
	verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(explorer.ErrAlreadyVerified)

	var logs bytes.Buffer
	fakeClock := clockwork.NewFakeClock()
	d := NewDeployer(chainClient, verifier,
		WithClock(fakeClock),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)

	result := runPastDelay(t, d, fakeClock, nil)
	require.Error(t, result.err)
	assert.True(t, errors.Is(result.err, explorer.ErrAlreadyVerified))
	assert.Equal(t, testDeployment.Address, result.deployment.Address)
	assert.Contains(t, logs.String(), "RandomWinnerGame deployed to: "+testDeployment.Address.Hex())
}

func TestDeployerRunVerifiesWhenNotIndexed(t *testing.T) {
	chainClient, factory, verifier := newMocks()
	factory.On("Deploy", mock.Anything, mock.Anything).Return(testDeployment, nil)
	verifier.On("WaitIndexed", mock.Anything, mock.Anything).Return(explorer.ErrNotIndexed)
	verifier.On("Verify", mock.Anything, testDeployment.Address, testParams.Args()).Return(nil)

	fakeClock := clockwork.NewFakeClock()
	result := runPastDelay(t, NewDeployer(chainClient, verifier, WithClock(fakeClock)), fakeClock, nil)

	require.NoError(t, result.err)
	verifier.AssertExpectations(t)
}

func TestDeployerRunNotIndexedAndVerifyFails(t *testing.T) {
	chainClient, factory, verifier := newMocks()
	factory.On("Deploy", mock.Anything, mock.Anything).Return(testDeployment, nil)
	verifier.On("WaitIndexed", mock.Anything, mock.Anything).Return(explorer.ErrNotIndexed)
	verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(&explorer.APIError{StatusCode: 200, Message: "NOTOK", Result: "Unable to locate ContractCode"})

	fakeClock := clockwork.NewFakeClock()
	result := runPastDelay(t, NewDeployer(chainClient, verifier, WithClock(fakeClock)), fakeClock, nil)

	require.Error(t, result.err)
	var apiErr *explorer.APIError
	assert.True(t, errors.As(result.err, &apiErr))
	assert.Contains(t, result.err.Error(), "verify command")
	assert.Equal(t, testDeployment.Address, result.deployment.Address)
}

func TestDeployerRunStopsWhenWaitIsCancelled(t *testing.T) {
	chainClient, factory, verifier := newMocks()
	factory.On("Deploy", mock.Anything, mock.Anything).Return(testDeployment, nil)
	verifier.On("WaitIndexed", mock.Anything, mock.Anything).Return(context.Canceled)

	fakeClock := clockwork.NewFakeClock()
	result := runPastDelay(t, NewDeployer(chainClient, verifier, WithClock(fakeClock)), fakeClock, nil)

	require.Error(t, result.err)
	assert.True(t, errors.Is(result.err, context.Canceled))
	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeployerRunRecordsDeployment(t *testing.T) {
	chainClient, factory, verifier := newMocks()
	factory.On("Deploy", mock.Anything, mock.Anything).Return(testDeployment, nil)
	verifier.On("WaitIndexed", mock.Anything, mock.Anything).Return(nil)
	verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	recorder := new(mockRecorder)
	recorder.On("Generate", mock.Anything, testDeployment, testParams).Return(errors.New("read-only file system"))

	fakeClock := clockwork.NewFakeClock()
	d := NewDeployer(chainClient, verifier, WithClock(fakeClock), WithRecorder(recorder))

	result := runPastDelay(t, d, fakeClock, func() {
		recorder.AssertExpectations(t)
	})
	require.NoError(t, result.err)
}
