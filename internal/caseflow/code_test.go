package caseflow

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCaseCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := newCaseCode()
		require.NoError(t, err)
		assert.True(t, IsCaseCode(code), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestIsCaseCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"FRD-123456-AB12", true},
		{"FRD-000001-ZZZZ", true},
		{"FRD-12345-AB12", false},
		{"frd-123456-ab12", false},
		{"FRD-123456-AB1", false},
		{"CASE-123456-AB12", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCaseCode(tt.code))
		})
	}
}

func TestCaseLocksSerializePerCase(t *testing.T) {
	locks := newCaseLocks()
	id := uuid.New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(id)
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.size())
}

func TestCaseLocksIndependentCases(t *testing.T) {
	locks := newCaseLocks()

	unlockA := locks.lock(uuid.New())
	unlockB := locks.lock(uuid.New())
	assert.Equal(t, 2, locks.size())

	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.size())
}
