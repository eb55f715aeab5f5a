package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAPIError_TruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 199) + "ñandú"

	apiErr := parseAPIError("fetch payment", http.StatusBadGateway, []byte(body))

	assert.True(t, utf8.ValidString(apiErr.Message))
	assert.Equal(t, strings.Repeat("a", 199), apiErr.Message)
	assert.True(t, apiErr.Temporary())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 200))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "", truncate("ñ", 1))
	assert.Equal(t, "año", truncate("año nuevo", 4))
}

func TestFlexibleID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FlexibleID
	}{
		{"string", `"123"`, "123"},
		{"padded string", `" 123 "`, "123"},
		{"number", `987654321`, "987654321"},
		{"large number", `123456789012345678`, "123456789012345678"},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id FlexibleID
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &id))
			assert.Equal(t, tt.want, id)
		})
	}

	var id FlexibleID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}
