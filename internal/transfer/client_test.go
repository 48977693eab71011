package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare host", "ftp.example.com", "ftp.example.com:21", false},
		{"host with port", "ftp.example.com:2121", "ftp.example.com:2121", false},
		{"ftp url", "ftp://ftp.example.com", "ftp.example.com:21", false},
		{"ftps url with port", "ftps://backup.example.com:990", "backup.example.com:990", false},
		{"surrounding whitespace", "  ftp.example.com  ", "ftp.example.com:21", false},
		{"empty", "", "", true},
		{"http scheme", "http://example.com", "", true},
		{"scheme only", "ftp://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpoint(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirPrefixes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"absolute", "/backup/Science/Physics", []string{"/backup", "/backup/Science", "/backup/Science/Physics"}},
		{"relative stays relative", "backup/Science", []string{"backup", "backup/Science"}},
		{"single segment", "/backup", []string{"/backup"}},
		{"trailing slash", "/backup/Science/", []string{"/backup", "/backup/Science"}},
		{"doubled separators", "backup//Science", []string{"backup", "backup/Science"}},
		{"empty", "", nil},
		{"root only", "/", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dirPrefixes(tt.in))
		})
	}
}

func TestCloseNilConn(t *testing.T) {
	var c *Conn
	c.Close() // must not panic
}
