package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageStatus_String(t *testing.T) {
	tests := []struct {
		status PageStatus
		want   string
	}{
		{PageStatusUnset, "unset"},
		{PageStatusPending, "pending"},
		{PageStatusSuccess, "success"},
		{PageStatusFailure, "failure"},
		{PageStatusNotFound, "not_found"},
		{PageStatusDBError, "db_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestPageStatus_IsValid(t *testing.T) {
	tests := []struct {
		status PageStatus
		want   bool
	}{
		{PageStatusPending, true},
		{PageStatusSuccess, true},
		{PageStatusFailure, true},
		{PageStatusUnset, false},
		{PageStatusNotFound, false},
		{PageStatusDBError, false},
		{PageStatus("arbitrary"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsValid(), "PageStatus(%q).IsValid()", string(tt.status))
	}
}

func TestPageStatus_NeedsRequeue(t *testing.T) {
	assert.True(t, PageStatusPending.NeedsRequeue())
	assert.True(t, PageStatusFailure.NeedsRequeue())
	assert.True(t, PageStatusUnset.NeedsRequeue())
	assert.False(t, PageStatusSuccess.NeedsRequeue())
}

func TestChainState_Next(t *testing.T) {
	tests := []struct {
		name    string
		from    ChainState
		hasNext bool
		want    ChainState
	}{
		{"first page with next link", ChainFirstPage, true, ChainSubsequentPage},
		{"first page without next link", ChainFirstPage, false, ChainTerminal},
		{"subsequent page with next link", ChainSubsequentPage, true, ChainSubsequentPage},
		{"subsequent page without next link", ChainSubsequentPage, false, ChainTerminal},
		{"terminal stays terminal", ChainTerminal, true, ChainTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.Next(tt.hasNext))
		})
	}
}

func TestChainState_String(t *testing.T) {
	assert.Equal(t, "first_page", ChainFirstPage.String())
	assert.Equal(t, "subsequent_page", ChainSubsequentPage.String())
	assert.Equal(t, "terminal", ChainTerminal.String())
	assert.Equal(t, "unknown", ChainState(42).String())
}
