package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsPlaceholders(t *testing.T) {
	query, args := Finalize("SELECT id FROM documents WHERE user_id=? AND status=?", []interface{}{"u1", "ready"})
	require.Equal(t, "SELECT id FROM documents WHERE user_id=$1 AND status=$2", query)
	require.Equal(t, []interface{}{"u1", "ready"}, args)
}

func TestFinalizeRewritesLimit(t *testing.T) {
	where := map[string]interface{}{
		"user_id":  "u1",
		"_orderby": "ctime desc",
		"_limit":   []uint{40, 20},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"id"})
	require.NoError(t, err)
	original := append([]interface{}(nil), args...)

	query, out := Finalize(sqlStr, args)
	require.Contains(t, query, "LIMIT $2 OFFSET $3")
	require.Len(t, out, 3)
	require.Equal(t, "u1", out[0])
	require.EqualValues(t, 20, out[1])
	require.EqualValues(t, 40, out[2])
	require.Equal(t, original, args)
}

func TestIsConflict(t *testing.T) {
	dup := &pq.Error{Code: uniqueViolation}
	require.True(t, IsConflict(dup))
	require.True(t, IsConflict(fmt.Errorf("insert user: %w", dup)))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.False(t, IsConflict(errors.New("boom")))
	require.False(t, IsConflict(nil))
}
