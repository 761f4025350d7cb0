package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("returned")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestAppendHistory_DoesNotAliasCallerSlice(t *testing.T) {
	o := Order{Status: StatusPending, StatusHistory: make([]HistoryEntry, 1, 4)}
	before := o.StatusHistory
	o.transition(StatusProcessing, "", "e2", o.StatusHistory[0].Timestamp)
	assert.Len(t, before, 1)
	assert.Len(t, o.StatusHistory, 2)
	assert.Equal(t, "Status updated", o.StatusHistory[1].Note)
}
