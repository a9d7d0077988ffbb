package inputval

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	Name string `json:"name"`
}

func TestDecodeJSON(t *testing.T) {
	var v decodeTarget
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Widget"}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, "Widget", v.Name)
}

func TestDecodeJSON_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"unknown":  `{"name":"W","colour":"red"}`,
		"trailing": `{"name":"W"} {"name":"X"}`,
		"broken":   `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var v decodeTarget
			r := httptest.NewRequest("POST", "/", strings.NewReader(body))
			assert.Error(t, DecodeJSON(r, &v))
		})
	}

	var v decodeTarget
	err := DecodeJSON(httptest.NewRequest("POST", "/", strings.NewReader("")), &v)
	assert.ErrorIs(t, err, ErrEmptyBody)
}
