package logging

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryOutput captures entries for assertions.
type memoryOutput struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (m *memoryOutput) Write(e LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryOutput) Sync() error  { return nil }
func (m *memoryOutput) Close() error { return nil }

func (m *memoryOutput) all() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func TestLoggerSeverityFiltering(t *testing.T) {
	out := &memoryOutput{}
	logger := NewLogger(Config{Severity: WARN, Outputs: []Output{out}})

	ctx := context.Background()
	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	entries := out.all()
	require.Len(t, entries, 2)
	assert.Equal(t, WARN, entries[0].Severity)
	assert.Equal(t, ERROR, entries[1].Severity)
}

func TestLoggerFormatsArguments(t *testing.T) {
	out := &memoryOutput{}
	logger := NewLogger(Config{Severity: DEBUG, Outputs: []Output{out}})

	logger.Info(context.Background(), "evaluated %d genomes in mode %s", 50, "novelty")

	entries := out.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "evaluated 50 genomes in mode novelty", entries[0].Message)
	assert.NotEmpty(t, entries[0].File)
	assert.NotZero(t, entries[0].Line)
}

func TestLoggerContextPropagation(t *testing.T) {
	out := &memoryOutput{}
	logger := NewLogger(Config{Severity: DEBUG, Outputs: []Output{out}})

	ctx := WithRunID(context.Background(), "run-42")
	ctx = WithGeneration(ctx, 7)
	logger.Info(ctx, "cycle complete")

	entries := out.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "run-42", entries[0].RunID)
	assert.Equal(t, 7, entries[0].Generation)
}

func TestLoggerDefaultFields(t *testing.T) {
	out := &memoryOutput{}
	logger := NewLogger(Config{
		Severity:      DEBUG,
		Outputs:       []Output{out},
		DefaultFields: map[string]interface{}{"component": "engine"},
	})

	logger.Info(context.Background(), "started")

	entries := out.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "engine", entries[0].Fields["component"])
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()

	_, ok := GetRunID(ctx)
	assert.False(t, ok)

	ctx = WithRunID(ctx, "abc")
	id, ok := GetRunID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}

func TestGenerationContext(t *testing.T) {
	ctx := context.Background()

	_, ok := GetGeneration(ctx)
	assert.False(t, ok)

	ctx = WithGeneration(ctx, 12)
	g, ok := GetGeneration(ctx)
	assert.True(t, ok)
	assert.Equal(t, 12, g)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
	}{
		{"DEBUG", DEBUG},
		{"INFO", INFO},
		{"WARN", WARN},
		{"ERROR", ERROR},
		{"FATAL", FATAL},
		{"garbage", INFO},
		{"", INFO},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSeverity(tt.input))
		})
	}
}

func TestGetLoggerReturnsSingleton(t *testing.T) {
	first := GetLogger()
	second := GetLogger()
	assert.Same(t, first, second)
}

func TestSetLogger(t *testing.T) {
	old := GetLogger()
	defer SetLogger(old)

	custom := NewLogger(Config{Severity: ERROR})
	SetLogger(custom)
	assert.Same(t, custom, GetLogger())
}
