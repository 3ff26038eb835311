package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePort(t *testing.T) {
	p, err := ValidatePort("10085")
	require.NoError(t, err)
	assert.Equal(t, 10085, p)

	for _, bad := range []string{"", "abc", "0", "65536", "-1"} {
		_, err := ValidatePort(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		domain string
		ok     bool
	}{
		{"vpn.example.com", true},
		{"a.b-c.io", true},
		{"localhost", true},
		{"", false},
		{"https://vpn.example.com", false},
		{"vpn.example.com/path", false},
		{"-bad.example.com", false},
		{"vpn.example.com; rm -rf /", false},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			err := ValidateDomain(tt.domain)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("xray"))
	assert.NoError(t, ValidateName("xray@config.service"))
	assert.NoError(t, ValidateName("vmess-tunnel"))
	assert.Error(t, ValidateName("--help"))
	assert.Error(t, ValidateName("xray service"))
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName("a$(id)"))
}
