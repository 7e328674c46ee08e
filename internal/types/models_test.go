package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuctionExpired(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name    string
		endTime *time.Time
		want    bool
	}{
		{"no end time stamped", nil, false},
		{"end time in the future", &future, false},
		{"end time in the past", &past, true},
		{"end time exactly now", &now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Auction{AuctionEndTime: tt.endTime}
			require.Equal(t, tt.want, a.Expired(now))
		})
	}
}

func TestAuctionComputedStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		status  string
		endTime *time.Time
		want    string
	}{
		{"approved and live", StatusApproved, &future, StatusApproved},
		{"approved and expired reads as ended", StatusApproved, &past, StatusEnded},
		{"pending never expires", StatusPending, nil, StatusPending},
		{"sold is terminal", StatusSold, &past, StatusSold},
		{"unsold is terminal", StatusUnsold, &past, StatusUnsold},
		{"rejected is terminal", StatusRejected, nil, StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Auction{Status: tt.status, AuctionEndTime: tt.endTime}
			require.Equal(t, tt.want, a.ComputedStatus(now))
		})
	}
}

func TestRejectionRetryable(t *testing.T) {
	require.True(t, NewRejection(CodeTransientConflict, "busy").Retryable())
	require.False(t, NewRejection(CodeBidTooLow, "too low").Retryable())
	require.False(t, NewRejection(CodeSelfBid, "own listing").Retryable())
}

func TestAsRejection(t *testing.T) {
	rej, ok := AsRejection(NewRejection(CodeNotFound, "auction %s not found", "AUC_x"))
	require.True(t, ok)
	require.Equal(t, CodeNotFound, rej.Code)
	require.Contains(t, rej.Message, "AUC_x")

	_, ok = AsRejection(nil)
	require.False(t, ok)
}
