package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/pkg/logger"
)

func newTestStorage(t *testing.T, runID string) *MessageStorage {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewMessageStorage(db, runID, logger.NewNop())
	require.NoError(t, err)
	return s
}

func TestStoreAndQueryMessages(t *testing.T) {
	s := newTestStorage(t, "run-1")
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	msgs := []message.Message{
		message.New("CCR", "APP-Y", message.TypeHandoff, "AF1", "inbound Y", base),
		message.New("APP-Y", "ALL", message.TypeHolding, "AF1", "sequence 1", base.Add(time.Second)),
		message.New("TWR-Y", "ALL", message.TypeParking, "BA2", "assigned stand P1", base.Add(2*time.Second)),
		message.New("CCR", "ALL", message.TypeSaturation, "", "Y at capacity", base.Add(3*time.Second)),
	}
	for _, m := range msgs {
		require.NoError(t, s.Write(m))
	}

	recent, err := s.QueryMessages(MessageFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "SATURATION", recent[0].Type)
	assert.Empty(t, recent[0].AircraftID)
	assert.Equal(t, "run-1", recent[0].RunID)

	tests := []struct {
		name   string
		filter MessageFilter
		want   []string
	}{
		{name: "by controller", filter: MessageFilter{Controller: "APP-Y"}, want: []string{"HOLDING", "HANDOFF"}},
		{name: "by aircraft", filter: MessageFilter{AircraftID: "AF1"}, want: []string{"HOLDING", "HANDOFF"}},
		{name: "by type", filter: MessageFilter{Type: "PARKING"}, want: []string{"PARKING"}},
		{name: "time range", filter: MessageFilter{Since: base.Add(time.Second), Until: base.Add(2 * time.Second)}, want: []string{"PARKING", "HOLDING"}},
		{name: "since", filter: MessageFilter{Since: base.Add(3 * time.Second)}, want: []string{"SATURATION"}},
		{name: "until", filter: MessageFilter{Until: base}, want: []string{"HANDOFF"}},
		{name: "no match", filter: MessageFilter{Controller: "TWR-X"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := s.QueryMessages(tt.filter)
			require.NoError(t, err)
			var got []string
			for _, r := range records {
				got = append(got, r.Type)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	counts, err := s.CountMessages()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"HANDOFF": 1, "HOLDING": 1, "PARKING": 1, "SATURATION": 1}, counts)

	byAircraft, err := s.QueryMessages(MessageFilter{AircraftID: "BA2", Limit: 10})
	require.NoError(t, err)
	require.Len(t, byAircraft, 1)
	assert.Equal(t, msgs[2], byAircraft[0].Message())
}

func TestMessagesAreScopedToRun(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	first, err := NewMessageStorage(db, "run-1", logger.NewNop())
	require.NoError(t, err)
	second, err := NewMessageStorage(db, "run-2", logger.NewNop())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, first.Write(message.New("CCR", "ALL", message.TypeInfo, "AF1", "one", now)))
	require.NoError(t, second.Write(message.New("CCR", "ALL", message.TypeInfo, "AF1", "two", now)))

	records, err := second.QueryMessages(MessageFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "two", records[0].Content)
}
