package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		expr     string
		expected Rule
		wantErr  bool
	}{
		{expr: "60/minute", expected: Rule{Requests: 60, Window: time.Minute}},
		{expr: "10/second", expected: Rule{Requests: 10, Window: time.Second}},
		{expr: " 1000 / Hour ", expected: Rule{Requests: 1000, Window: time.Hour}},
		{expr: "5 per day", expected: Rule{Requests: 5, Window: 24 * time.Hour}},
		{expr: "3/s", expected: Rule{Requests: 3, Window: time.Second}},
		{expr: "", wantErr: true},
		{expr: "60", wantErr: true},
		{expr: "0/minute", wantErr: true},
		{expr: "-1/minute", wantErr: true},
		{expr: "ten/minute", wantErr: true},
		{expr: "60/fortnight", wantErr: true},
		{expr: "1000000000/second", expected: Rule{Requests: 1000000000, Window: time.Second}},
		{expr: "1000000001/second", wantErr: true},
		{expr: "99999999999999/day", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rule, err := ParseRule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rule)
		})
	}
}

func TestRule_Interval(t *testing.T) {
	assert.Equal(t, time.Second, Rule{Requests: 60, Window: time.Minute}.Interval())
	assert.Equal(t, time.Nanosecond, Rule{Requests: 1000000000, Window: time.Second}.Interval())
	assert.Zero(t, Rule{Requests: 0, Window: time.Minute}.Interval())
}
