package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolreport/internal/schoolapi"
)

func records(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{Student: schoolapi.Student{UserID: schoolapi.ID(strconv.Itoa(i))}}
	}
	return out
}

func TestEnricherPreservesOrderAndBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	wave := Wave{
		Name:   "slow",
		Policy: Abort,
		Apply: func(ctx context.Context, rec Record) (Record, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			rec.Student.FirstName = "seen-" + rec.Student.UserID.String()
			return rec, nil
		},
	}

	e := NewEnricher(4, nil, nil)
	out, skipped, err := e.Run(context.Background(), records(40), wave)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, out, 40)
	for i, rec := range out {
		assert.Equal(t, "seen-"+strconv.Itoa(i), rec.Student.FirstName)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func failOdd(ctx context.Context, rec Record) (Record, error) {
	id, _ := strconv.Atoi(rec.Student.UserID.String())
	if id%2 == 1 {
		return rec, errors.New("upstream timeout")
	}
	rec.Student.EthnicGroup = "enriched"
	return rec, nil
}

func TestEnricherPolicies(t *testing.T) {
	e := NewEnricher(3, nil, nil)

	t.Run("abort", func(t *testing.T) {
		out, _, err := e.Run(context.Background(), records(6), Wave{Name: "w", Policy: Abort, Apply: failOdd})
		require.Error(t, err)
		assert.Nil(t, out)
		assert.Contains(t, err.Error(), "upstream timeout")
	})

	t.Run("degrade", func(t *testing.T) {
		out, skipped, err := e.Run(context.Background(), records(6), Wave{Name: "w", Policy: Degrade, Apply: failOdd})
		require.NoError(t, err)
		assert.Zero(t, skipped)
		require.Len(t, out, 6)
		for i, rec := range out {
			if i%2 == 1 {
				assert.Empty(t, rec.Student.EthnicGroup)
				assert.Equal(t, []string{"w"}, rec.Degraded)
			} else {
				assert.Equal(t, "enriched", rec.Student.EthnicGroup)
				assert.Empty(t, rec.Degraded)
			}
		}
	})

	t.Run("skip", func(t *testing.T) {
		out, skipped, err := e.Run(context.Background(), records(6), Wave{Name: "w", Policy: Skip, Apply: failOdd})
		require.NoError(t, err)
		assert.Equal(t, 3, skipped)
		require.Len(t, out, 3)
		for i, rec := range out {
			assert.Equal(t, strconv.Itoa(i*2), rec.Student.UserID.String())
		}
	})

	t.Run("invalid policy aborts", func(t *testing.T) {
		_, _, err := e.Run(context.Background(), records(2), Wave{Name: "w", Policy: "bogus", Apply: failOdd})
		require.Error(t, err)
	})
}

func TestEnricherCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wave := Wave{Name: "w", Policy: Degrade, Apply: func(ctx context.Context, rec Record) (Record, error) {
		return rec, ctx.Err()
	}}
	_, _, err := NewEnricher(2, nil, nil).Run(ctx, records(3), wave)
	assert.ErrorIs(t, err, context.Canceled)
}
