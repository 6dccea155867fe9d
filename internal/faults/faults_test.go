package faults

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	testCases := []struct {
		kind     Kind
		sentinel error
	}{
		{KindConfiguration, ErrConfiguration},
		{KindRange, ErrInvalidRange},
		{KindWrite, ErrWrite},
		{KindJob, ErrJobFailed},
		{KindParse, ErrParse},
		{KindCleanup, ErrCleanup},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", New(tc.kind, "op", "subject", errors.New("boom")))
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestError_DoesNotMatchOtherSentinels(t *testing.T) {
	err := New(KindParse, "parse", "a.xml", errors.New("bad"))
	assert.NotErrorIs(t, err, ErrWrite)
	assert.NotErrorIs(t, err, ErrConfiguration)
}

func TestError_Message(t *testing.T) {
	err := New(KindWrite, "write route", "route_1_tau0.8.rou.xml", errors.New("disk full"))
	assert.Equal(t, "write: write route route_1_tau0.8.rou.xml: disk full", err.Error())

	noSubject := New(KindJob, "run", "", nil)
	assert.Equal(t, "job: run", noSubject.Error())
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := New(KindJob, "run", "cfg", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(KindConfiguration, "load", "x.csv", nil)))
	assert.False(t, IsFatal(New(KindRange, "expand", "tau", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestCollector_RecordConcurrent(t *testing.T) {
	c := NewCollector(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := KindJob
			if i%2 == 0 {
				kind = KindParse
			}
			c.Record(kind, "op", fmt.Sprintf("s%d", i), errors.New("x"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
	assert.Equal(t, 25, c.Count(KindJob))
	assert.Equal(t, 25, c.Count(KindParse))
}

func TestCollector_RecordKeepsExistingKind(t *testing.T) {
	c := NewCollector(nil)
	c.Record(KindJob, "ignored", "ignored", New(KindWrite, "write", "f", errors.New("x")))

	got := c.Faults()
	require.Len(t, got, 1)
	assert.Equal(t, KindWrite, got[0].Kind)
	assert.Equal(t, "write", got[0].Op)
}

func TestCollector_RecordNilIsNoop(t *testing.T) {
	c := NewCollector(nil)
	assert.Nil(t, c.Record(KindJob, "run", "x", nil))
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Faults())
}
