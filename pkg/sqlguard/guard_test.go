package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParam(t *testing.T) {
	tests := []struct {
		name            string
		param           string
		value           any
		expectInjection bool
	}{
		{name: "clean numeric string", param: "customer_id", value: "12345", expectInjection: false},
		{name: "clean date string", param: "as_of", value: "2024-01-15", expectInjection: false},
		{name: "clean uuid", param: "id", value: "550e8400-e29b-41d4-a716-446655440000", expectInjection: false},
		{name: "clean multi-word value", param: "region", value: "north east coast", expectInjection: false},

		// Non-string values can't carry injection
		{name: "integer value", param: "limit", value: 100, expectInjection: false},
		{name: "float value", param: "min_amount", value: 99.95, expectInjection: false},
		{name: "boolean value", param: "active", value: true, expectInjection: false},
		{name: "nil value", param: "optional", value: nil, expectInjection: false},

		// Classic patterns
		{name: "quote injection", param: "username", value: "' OR '1'='1", expectInjection: true},
		{name: "drop table injection", param: "search", value: "'; DROP TABLE users--", expectInjection: true},
		{name: "union select injection", param: "id", value: "1 UNION SELECT * FROM passwords", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finding := CheckParam(tt.param, tt.value)
			if !tt.expectInjection {
				assert.Nil(t, finding)
				return
			}
			require.NotNil(t, finding)
			assert.Equal(t, tt.param, finding.Param)
			assert.NotEmpty(t, finding.Fingerprint)
		})
	}
}
