package memory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdbl/leave-engine/leave"
	"github.com/cdbl/leave-engine/store/memory"
)

func balance(member string, kind leave.Kind, year int, opening int64) leave.Balance {
	return leave.Balance{
		MemberID: leave.MemberID(member), Kind: kind, Year: year,
		Opening: decimal.NewFromInt(opening),
		Closing: decimal.NewFromInt(opening),
	}
}

func TestPutBalance_DuplicateKey_Errors(t *testing.T) {
	// GIVEN: An existing balance record for (member, kind, year)
	// WHEN: Inserting a second record under the same key
	// THEN: An error, and the original record is untouched

	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.PutBalance(ctx, balance("emp-1", leave.KindEarned, 2025, 10)))

	err := s.PutBalance(ctx, balance("emp-1", leave.KindEarned, 2025, 99))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	got, err := s.GetBalance(ctx, "emp-1", leave.KindEarned, 2025)
	require.NoError(t, err)
	assert.Equal(t, "10", got.Opening.String())
	assert.Equal(t, int64(1), got.Version)
}

func TestPutBalance_DistinctKeys_Coexist(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.PutBalance(ctx, balance("emp-1", leave.KindEarned, 2025, 10)))
	require.NoError(t, s.PutBalance(ctx, balance("emp-1", leave.KindCasual, 2025, 10)))
	require.NoError(t, s.PutBalance(ctx, balance("emp-1", leave.KindEarned, 2026, 10)))
	require.NoError(t, s.PutBalance(ctx, balance("emp-2", leave.KindEarned, 2025, 10)))
}

func TestUpdateBalance_VersionConflict(t *testing.T) {
	// GIVEN: Two readers holding the same balance version
	// WHEN: Both write back
	// THEN: The second write loses with a retryable conflict

	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.PutBalance(ctx, balance("emp-1", leave.KindEarned, 2025, 10)))

	first, err := s.GetBalance(ctx, "emp-1", leave.KindEarned, 2025)
	require.NoError(t, err)
	second := first

	first.Used = decimal.NewFromInt(2)
	require.NoError(t, s.UpdateBalance(ctx, first))

	second.Used = decimal.NewFromInt(3)
	err = s.UpdateBalance(ctx, second)
	assert.ErrorIs(t, err, leave.ErrConcurrentModification)
	assert.True(t, leave.IsRetryable(err))
}
