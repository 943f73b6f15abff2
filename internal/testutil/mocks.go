package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/jbrant/mcc-go/pkg/core"
)

// MockDecoder is a mock implementation of core.Decoder.
type MockDecoder struct {
	mock.Mock
}

func (m *MockDecoder) Decode(g *core.Genome) (core.Phenome, error) {
	args := m.Called(g)
	return args.Get(0), args.Error(1)
}

// MockScorer is a mock implementation of core.Scorer.
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, phenome core.Phenome, target core.Phenome) (core.TrialResult, error) {
	args := m.Called(ctx, phenome, target)
	return args.Get(0).(core.TrialResult), args.Error(1)
}

// CountingScorer is a Scorer double that counts concurrent invocations and
// returns a fixed result. Useful for asserting the evaluator's exactly-once
// counting behavior without mock bookkeeping overhead.
type CountingScorer struct {
	Result core.TrialResult

	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
}

func (s *CountingScorer) Score(ctx context.Context, phenome core.Phenome, target core.Phenome) (core.TrialResult, error) {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	return s.Result, nil
}

// Calls returns the total invocation count.
func (s *CountingScorer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// MaxInFlight returns the peak concurrency observed.
func (s *CountingScorer) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// IdentityDecoder decodes any genome to itself. Handy when a test's scorer
// only needs the genome's genes.
type IdentityDecoder struct{}

func (IdentityDecoder) Decode(g *core.Genome) (core.Phenome, error) {
	return g, nil
}
