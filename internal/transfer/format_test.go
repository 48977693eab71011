package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want string
	}{
		{"zero", 0, "0"},
		{"negative", -5, "0"},
		{"sub-kilobyte", 512, "0,5 KB"},
		{"tiny rounds to zero kilobytes", 49, "0 KB"},
		{"just under one kilobyte", 999, "1 KB"},
		{"kilobytes with fraction", 1500, "1,5 KB"},
		{"kilobytes rounded", 1549, "1,5 KB"},
		{"whole kilobytes", 2000, "2 KB"},
		{"megabytes whole", 2000000, "2 MB"},
		{"megabytes fraction", 2500000, "2,5 MB"},
		{"gigabytes", 1250000000, "1,25 GB"},
		{"gigabytes whole", 3000000000, "3 GB"},
		{"terabytes", 1234000000000, "1,234 TB"},
		{"terabytes whole", 2000000000000, "2 TB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.in))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Algebra I", "Algebra I"},
		{"accents stripped", "Introdução à Programação", "Introducao a Programacao"},
		{"german", "Straße über Größe", "Strasse uber Grosse"},
		{"nordic", "Søren Ægir", "Soren AEgir"},
		{"punctuation dropped", "Math: Unit #1 (2024)!", "Math Unit 1 2024"},
		{"kept specials", "a_b-c.d e", "a_b-c.d e"},
		{"cjk removed", "数学 Math", " Math"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}
