package pagination

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

type row struct {
	id      snowflake.ID
	created time.Time
}

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1790000000000000000", CreatedAt: "2026-01-02T03:04:05Z"})
	require.NoError(t, err)
	require.NotContains(t, token, "+")
	require.NotContains(t, token, "/")

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.Equal(t, "1790000000000000000", decoded.ID)
}

func TestBuildCursorPageInfoDetectsMore(t *testing.T) {
	items := []*row{{id: 1}, {id: 2}, {id: 3}}
	info := BuildCursorPageInfo(items, 2, func(r *row) string { return r.id.String() })
	require.True(t, info.HasMore)
	require.Equal(t, "2", info.NextPageToken)

	info = BuildCursorPageInfo(items[:2], 2, func(r *row) string { return r.id.String() })
	require.False(t, info.HasMore)
}

func TestPageTrimsExtraRowAndPointsAtLastKept(t *testing.T) {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	rows := []*row{
		{id: 30, created: base.Add(2 * time.Minute)},
		{id: 20, created: base.Add(time.Minute)},
		{id: 10, created: base},
	}

	out, info := Page(rows, 2, func(r *row) (snowflake.ID, time.Time) { return r.id, r.created })
	require.Len(t, out, 2)
	require.True(t, info.HasMore)

	pos, err := ParsePosition(info.NextPageToken)
	require.NoError(t, err)
	require.Equal(t, snowflake.ID(20), pos.ID)
	require.True(t, pos.CreatedAt.Equal(base.Add(time.Minute)))

	out, info = Page(rows[:1], 2, func(r *row) (snowflake.ID, time.Time) { return r.id, r.created })
	require.Len(t, out, 1)
	require.False(t, info.HasMore)
}

func TestParsePosition(t *testing.T) {
	pos, err := ParsePosition("  ")
	require.NoError(t, err)
	require.Nil(t, pos)

	_, err = ParsePosition("%%%")
	require.ErrorIs(t, err, ErrInvalidCursor)

	token, err := EncodeCursor(Cursor{ID: "0", CreatedAt: "2026-01-02T03:04:05Z"})
	require.NoError(t, err)
	_, err = ParsePosition(token)
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestLimit(t *testing.T) {
	require.Equal(t, DefaultPageSize, Limit(0))
	require.Equal(t, MaxPageSize, Limit(1000))
	require.Equal(t, 7, Limit(7))
}
