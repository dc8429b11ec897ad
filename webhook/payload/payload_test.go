package payload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("success - RFC 3339 timestamp", func(t *testing.T) {
		data := []byte(`{
			"id": "evt_1",
			"event_type": "cte.issued",
			"correlation_key": "ORD-1001",
			"timestamp": "2024-01-01T12:00:00Z",
			"cte_key": "35240112345678000190570010000012341000012345"
		}`)

		env, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", env.ID)
		assert.Equal(t, "cte.issued", env.EventType)
		assert.Equal(t, "ORD-1001", env.CorrelationKey)
		assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), env.Timestamp.UTC())
	})

	t.Run("success - nanosecond timestamp", func(t *testing.T) {
		env, err := Parse([]byte(`{"event_type":"container.gate_in","correlation_key":"C1","timestamp":"2024-01-01T12:00:00.123456789Z"}`))
		require.NoError(t, err)
		assert.Equal(t, 123456789, env.Timestamp.Nanosecond())
	})

	t.Run("success - unix timestamp", func(t *testing.T) {
		env, err := Parse([]byte(`{"event_type":"vessel.berthed","correlation_key":"V1","timestamp":1704110400}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1704110400), env.Timestamp.Unix())
	})

	t.Run("success - event_id alias", func(t *testing.T) {
		env, err := Parse([]byte(`{"event_id":"evt_9","event_type":"invoice.paid","correlation_key":"INV-9","timestamp":"2024-01-01T12:00:00Z"}`))
		require.NoError(t, err)
		assert.Equal(t, "evt_9", env.ID)
	})

	t.Run("success - id wins over event_id", func(t *testing.T) {
		env, err := Parse([]byte(`{"id":"a","event_id":"b","event_type":"invoice.paid","correlation_key":"INV-9","timestamp":"2024-01-01T12:00:00Z"}`))
		require.NoError(t, err)
		assert.Equal(t, "a", env.ID)
	})

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing event_type", `{"correlation_key":"O1","timestamp":"2024-01-01T12:00:00Z"}`, "event_type is required"},
		{"invalid event_type", `{"event_type":"cte-issued","correlation_key":"O1","timestamp":"2024-01-01T12:00:00Z"}`, "must be hierarchical"},
		{"missing correlation_key", `{"event_type":"cte.issued","timestamp":"2024-01-01T12:00:00Z"}`, "correlation_key is required"},
		{"blank correlation_key", `{"event_type":"cte.issued","correlation_key":"  ","timestamp":"2024-01-01T12:00:00Z"}`, "correlation_key is required"},
		{"missing timestamp", `{"event_type":"cte.issued","correlation_key":"O1"}`, "timestamp is required"},
		{"bad timestamp", `{"event_type":"cte.issued","correlation_key":"O1","timestamp":"yesterday"}`, "parsing timestamp"},
		{"not json", `not json`, "unmarshaling payload"},
	}
	for _, tt := range tests {
		t.Run("error - "+tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMatchEventType(t *testing.T) {
	tests := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"cte.issued", "cte.issued", true},
		{"cte.issued", "cte.cancelled", false},
		{"cte.*", "cte.issued", true},
		{"cte.*", "cte.issued.v2", true},
		{"cte.*", "cte", false},
		{"cte.*", "cteX.issued", false},
		{"*", "anything.at_all", true},
		{"customs.release.*", "customs.release.granted", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchEventType(tt.pattern, tt.eventType))
		})
	}
}

func TestValidateEventType(t *testing.T) {
	assert.NoError(t, ValidateEventType("cte.issued"))
	assert.NoError(t, ValidateEventType("cte.*"))
	assert.NoError(t, ValidateEventType("*"))
	assert.Error(t, ValidateEventType(""))
	assert.Error(t, ValidateEventType("cte issued"))
	assert.Error(t, ValidateEventType(".*"))
}
