package raster

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"projblend/pkg/errs"
)

// gradientImage returns an image whose channels differ per pixel so row
// order mistakes show up.
func gradientImage(width, height int) *Image {
	img := New(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(U, x, y, float64(x)/float64(width))
			img.Set(V, x, y, float64(y)/float64(height))
			img.Set(I, x, y, float64(x*y))
		}
	}
	return img
}

func TestEncodeDecode(t *testing.T) {
	for _, size := range [][2]int{{7, 5}, {3, 4}, {1, 1}} {
		src := gradientImage(size[0], size[1])

		var buf bytes.Buffer
		if err := Encode(&buf, src); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		header := fmt.Sprintf("PF\n%d %d\n-1.0\n", size[0], size[1])
		if !strings.HasPrefix(buf.String(), header) {
			t.Fatalf("unexpected header %q", buf.String()[:len(header)])
		}

		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if !got.HasSize(src.Width, src.Height) {
			t.Fatalf("size = %dx%d, want %dx%d", got.Width, got.Height, src.Width, src.Height)
		}
		for c := 0; c < 3; c++ {
			for i := range src.Planes[c] {
				if got.Planes[c][i] != src.Planes[c][i] {
					t.Fatalf("%dx%d: channel %d index %d = %v, want %v", size[0], size[1], c, i, got.Planes[c][i], src.Planes[c][i])
				}
			}
		}
	}
}

func TestEncodeStoresBottomRowFirst(t *testing.T) {
	img := New(1, 2)
	img.Set(U, 0, 0, 1) // top
	img.Set(U, 0, 1, 2) // bottom

	var buf bytes.Buffer
	if err := Encode(&buf, img); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data := buf.Bytes()[len("PF\n1 2\n-1.0\n"):]
	// first float on disk is the bottom row's U value, 2.0 little-endian
	if !bytes.Equal(data[:4], []byte{0x00, 0x00, 0x00, 0x40}) {
		t.Errorf("first stored float = % x, want 00 00 00 40", data[:4])
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"grayscale", "Pf\n1 1\n-1.0\n\x00\x00\x00\x00"},
		{"bad size", "PF\n0 4\n-1.0\n"},
		{"bad scale", "PF\n1 1\nabc\n"},
		{"zero scale", "PF\n1 1\n0\n"},
		{"truncated", "PF\n2 2\n-1.0\n\x00\x00"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.input)); err == nil {
				t.Fatal("Decode succeeded, want error")
			}
		})
	}
}

func TestWriteFileReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "display_server1.blend.pfm")
	src := gradientImage(4, 3)

	if err := WriteFile(path, src); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want only the raster (temp file left behind?)", len(entries))
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got.At(I, 3, 2) != src.At(I, 3, 2) {
		t.Errorf("I(3,2) = %v, want %v", got.At(I, 3, 2), src.At(I, 3, 2))
	}
}

func TestReadFileMissingIsIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.pfm")
	_, err := ReadFile(path)

	var ioErr *errs.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("ReadFile error = %v, want *errs.IOError", err)
	}
	if ioErr.Path != path {
		t.Errorf("IOError.Path = %q, want %q", ioErr.Path, path)
	}
}

func TestDecodeOversizedHeader(t *testing.T) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := Decode(strings.NewReader("PF\n8000 8000\n-1.0\n"))
	runtime.ReadMemStats(&after)

	if err == nil {
		t.Fatal("Decode succeeded on a header without pixel data")
	}
	if grown := after.TotalAlloc - before.TotalAlloc; grown > 16<<20 {
		t.Errorf("Decode allocated %d MB for an empty 8000x8000 stream", grown>>20)
	}
}

func TestReadFileTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.pfm")
	if err := os.WriteFile(path, []byte("PF\n8000 8000\n-1.0\n\x00\x00\x00\x00"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadFile(path)
	var ioErr *errs.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("ReadFile error = %v, want *errs.IOError", err)
	}
	if !strings.Contains(err.Error(), "truncated PFM") {
		t.Errorf("error = %q, want a truncation message", err)
	}
}

func TestFromGrid(t *testing.T) {
	img := FromGrid(3, 2, func(x, y int) float64 { return float64(x + 10*y) })
	for c := 0; c < 3; c++ {
		if got := img.At(c, 2, 1); got != 12 {
			t.Errorf("channel %d at (2,1) = %v, want 12", c, got)
		}
	}
}
