package playback

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	const clip = 4096 // bytes in the test output

	tests := []struct {
		name    string
		header  string
		size    int64
		want    *Range
		wantErr error
	}{
		{name: "no header plays everything", header: "", size: clip},
		{name: "whole file", header: "bytes=0-4095", size: clip, want: &Range{0, 4095}},
		{name: "seek to offset", header: "bytes=2048-", size: clip, want: &Range{2048, 4095}},
		{name: "tail for moov atom", header: "bytes=-1024", size: clip, want: &Range{3072, 4095}},
		{name: "first byte", header: "bytes=0-0", size: clip, want: &Range{0, 0}},
		{name: "window", header: "bytes=1024-2047", size: clip, want: &Range{1024, 2047}},
		{name: "end clamped", header: "bytes=0-99999", size: clip, want: &Range{0, 4095}},
		{name: "suffix longer than file", header: "bytes=-99999", size: 512, want: &Range{0, 511}},
		{name: "last byte", header: "bytes=4095-", size: clip, want: &Range{4095, 4095}},
		{name: "only first of several", header: "bytes=0-9, 20-29", size: clip, want: &Range{0, 9}},
		{name: "spaces around", header: "bytes= 10-19", size: clip, want: &Range{10, 19}},

		{name: "start at size", header: "bytes=4096-", size: clip, wantErr: ErrUnsatisfiable},
		{name: "start past size", header: "bytes=5000-6000", size: clip, wantErr: ErrUnsatisfiable},
		{name: "empty output", header: "bytes=0-", size: 0, wantErr: ErrUnsatisfiable},
		{name: "garbage", header: "invalid", size: clip, wantErr: ErrInvalidRange},
		{name: "unit other than bytes", header: "frames=0-10", size: clip, wantErr: ErrInvalidRange},
		{name: "non numeric start", header: "bytes=x-10", size: clip, wantErr: ErrInvalidRange},
		{name: "non numeric end", header: "bytes=0-y", size: clip, wantErr: ErrInvalidRange},
		{name: "zero suffix", header: "bytes=-0", size: clip, wantErr: ErrInvalidRange},
		{name: "missing dash", header: "bytes=10", size: clip, wantErr: ErrInvalidRange},
		{name: "end before start", header: "bytes=20-10", size: clip, wantErr: ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseRange(%q) error = %v, want %v", tt.header, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange(%q) unexpected error: %v", tt.header, err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseRange(%q) = %+v, want nil", tt.header, *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("ParseRange(%q) = %+v, want %+v", tt.header, got, *tt.want)
			}
		})
	}
}

func TestRangeHeaders(t *testing.T) {
	r := Range{Start: 1024, End: 2047}
	if got := r.Length(); got != 1024 {
		t.Errorf("Length() = %d, want 1024", got)
	}
	if got, want := r.ContentRange(4096), "bytes 1024-2047/4096"; got != want {
		t.Errorf("ContentRange() = %q, want %q", got, want)
	}

	one := Range{}
	if one.Length() != 1 || one.ContentRange(1) != "bytes 0-0/1" {
		t.Errorf("single byte range = %d %q", one.Length(), one.ContentRange(1))
	}
}
