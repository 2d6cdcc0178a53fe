package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: NotRequested, want: "not-requested"},
		{in: RequesterWatched, want: "requester-watched"},
		{in: "requester:alice", want: "requester-alice"},
		{in: "Requester:Alice Smith", want: "requester-alice-smith"},
		{in: "requester:bob__the..builder", want: "requester-bob-the-builder"},
		{in: "owner:ünïcode", want: "owner-n-code"},
		{in: "--x--", want: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Manager(tt.in))
		})
	}
}

func TestIsStatusLabel(t *testing.T) {
	assert.True(t, IsStatusLabel("NOT_REQUESTED"))
	assert.True(t, IsStatusLabel("requester:alice"))
	assert.True(t, IsStatusLabel(StaleRequest))
	assert.False(t, IsStatusLabel("requester:"))
	assert.False(t, IsStatusLabel("owner:alice"))
	assert.False(t, IsStatusLabel("4k"))

	assert.True(t, IsReqtagLabel("owner:alice"))
	assert.False(t, IsReqtagLabel("owner:"))
}

func TestIsManagerStatusTag(t *testing.T) {
	assert.True(t, IsManagerStatusTag("not-requested"))
	assert.True(t, IsManagerStatusTag("requester-alice"))
	assert.True(t, IsManagerStatusTag("requester-watched"))
	assert.False(t, IsManagerStatusTag("requester-"))
	assert.False(t, IsManagerStatusTag("keep"))
}

func TestParseRequester(t *testing.T) {
	user, ok := ParseRequester("Requester:Alice")
	assert.True(t, ok)
	assert.Equal(t, "alice", user)

	_, ok = ParseRequester("owner:alice")
	assert.False(t, ok)
	assert.Equal(t, "requester:alice", Requester(" Alice "))
	assert.Equal(t, "owner:alice", Owner("ALICE"))
}
