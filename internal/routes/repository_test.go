package routes

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBuildListQuery(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name          string
		params        ListParams
		wantWhere     string
		wantArgs      []interface{}
		wantPageParam string
	}{
		{
			name:          "no filters",
			params:        ListParams{Limit: 20, Offset: 40},
			wantWhere:     "SELECT COUNT(*) FROM routes",
			wantArgs:      []interface{}{20, 40},
			wantPageParam: "LIMIT $1 OFFSET $2",
		},
		{
			name:          "owner filter",
			params:        ListParams{Limit: 10, OwnerID: &ownerID},
			wantWhere:     "SELECT COUNT(*) FROM routes WHERE owner_id = $1",
			wantArgs:      []interface{}{ownerID, 10, 0},
			wantPageParam: "LIMIT $2 OFFSET $3",
		},
		{
			name:          "owner and search",
			params:        ListParams{Limit: 5, OwnerID: &ownerID, Search: " han "},
			wantWhere:     "SELECT COUNT(*) FROM routes WHERE owner_id = $1 AND name ILIKE $2",
			wantArgs:      []interface{}{ownerID, "%han%", 5, 0},
			wantPageParam: "LIMIT $3 OFFSET $4",
		},
		{
			name:          "search wildcards are escaped",
			params:        ListParams{Limit: 5, Search: "100%_fun"},
			wantWhere:     "SELECT COUNT(*) FROM routes WHERE name ILIKE $1",
			wantArgs:      []interface{}{`%100\%\_fun%`, 5, 0},
			wantPageParam: "LIMIT $2 OFFSET $3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, countQuery, args := buildListQuery(tt.params)

			assert.Equal(t, tt.wantWhere, countQuery)
			assert.Equal(t, tt.wantArgs, args)
			assert.Contains(t, query, "ORDER BY created_at DESC, id ASC")
			assert.Contains(t, query, tt.wantPageParam)
		})
	}
}

func TestNearbyRoutesQueryRanksByDistanceBeforeLimit(t *testing.T) {
	orderBy := strings.Index(nearbyRoutesQuery, "ORDER BY")
	limit := strings.Index(nearbyRoutesQuery, "LIMIT $4")

	assert.Contains(t, nearbyRoutesQuery, "start_cell = ANY($1)")
	assert.Contains(t, nearbyRoutesQuery, "cos(radians($2))")
	assert.Greater(t, orderBy, 0)
	assert.Greater(t, limit, orderBy)
	assert.Less(t, strings.Index(nearbyRoutesQuery, "power(start_latitude - $2, 2)"), strings.Index(nearbyRoutesQuery, "created_at DESC"))
}
