package service

import (
	"strings"
	"testing"
)

func TestPreviewTitle(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "short message kept whole",
			message: "hello there",
			want:    "hello there",
		},
		{
			name:    "surrounding whitespace trimmed",
			message: "  hi  ",
			want:    "hi",
		},
		{
			name:    "long message truncated with ellipsis",
			message: strings.Repeat("a", 40),
			want:    strings.Repeat("a", 30) + "...",
		},
		{
			name:    "exactly at limit untouched",
			message: strings.Repeat("b", 30),
			want:    strings.Repeat("b", 30),
		},
		{
			name:    "multibyte runes counted as runes",
			message: strings.Repeat("世", 31),
			want:    strings.Repeat("世", 30) + "...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := previewTitle(tt.message); got != tt.want {
				t.Errorf("previewTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
