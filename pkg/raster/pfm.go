package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"projblend/pkg/errs"
)

// maxDimension bounds the width and height accepted from a PFM header.
const maxDimension = 1 << 15

// pixelBytes is the stored size of one (U, V, I) pixel.
const pixelBytes = 3 * 4

// Decode reads a colour PFM ("PF") stream. Rows are stored bottom-to-top on
// disk and returned top-to-bottom. The sign of the scale field selects the
// byte order: negative is little-endian.
func Decode(r io.Reader) (*Image, error) {
	return decode(r, -1)
}

// decode reads a PFM stream of size bytes, or of unknown size when size is
// negative. Planes grow with the rows actually read, so a header claiming
// more pixels than the stream holds fails without allocating the full image.
func decode(r io.Reader, size int64) (*Image, error) {
	h := &header{br: bufio.NewReader(r)}

	magic, err := h.token()
	if err != nil {
		return nil, errors.Wrap(err, "reading magic")
	}
	if magic != "PF" {
		return nil, fmt.Errorf("unsupported PFM magic %q, want \"PF\"", magic)
	}

	width, err := h.integer()
	if err != nil {
		return nil, errors.Wrap(err, "reading width")
	}
	height, err := h.integer()
	if err != nil {
		return nil, errors.Wrap(err, "reading height")
	}
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("invalid PFM size %dx%d", width, height)
	}

	scaleTok, err := h.token()
	if err != nil {
		return nil, errors.Wrap(err, "reading scale")
	}
	scale, err := strconv.ParseFloat(scaleTok, 64)
	if err != nil || scale == 0 {
		return nil, fmt.Errorf("invalid PFM scale %q", scaleTok)
	}
	var order binary.ByteOrder = binary.BigEndian
	if scale < 0 {
		order = binary.LittleEndian
	}

	if want := int64(pixelBytes) * int64(width) * int64(height); size >= 0 && size-h.n < want {
		return nil, fmt.Errorf("truncated PFM: %d bytes of pixel data for %dx%d, want %d", max(size-h.n, 0), width, height, want)
	}

	img := &Image{Width: width, Height: height}
	row := make([]float32, 3*width)
	for y := height - 1; y >= 0; y-- {
		if err := binary.Read(h.br, order, row); err != nil {
			return nil, errors.Wrapf(err, "reading row %d", y)
		}
		for x := 0; x < width; x++ {
			img.Planes[U] = append(img.Planes[U], row[3*x])
			img.Planes[V] = append(img.Planes[V], row[3*x+1])
			img.Planes[I] = append(img.Planes[I], row[3*x+2])
		}
	}

	// rows were appended bottom first
	for top, bottom := 0, height-1; top < bottom; top, bottom = top+1, bottom-1 {
		for c := range img.Planes {
			a := img.Planes[c][top*width : (top+1)*width]
			b := img.Planes[c][bottom*width : (bottom+1)*width]
			for x := range a {
				a[x], b[x] = b[x], a[x]
			}
		}
	}
	return img, nil
}

// Encode writes m as a little-endian colour PFM stream.
func Encode(w io.Writer, m *Image) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "PF\n%d %d\n-1.0\n", m.Width, m.Height); err != nil {
		return err
	}

	row := make([]float32, 3*m.Width)
	for y := m.Height - 1; y >= 0; y-- {
		base := y * m.Width
		for x := 0; x < m.Width; x++ {
			row[3*x] = m.Planes[U][base+x]
			row[3*x+1] = m.Planes[V][base+x]
			row[3*x+2] = m.Planes[I][base+x]
		}
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return errors.Wrapf(err, "writing row %d", y)
		}
	}
	return bw.Flush()
}

// ReadFile decodes the PFM file at path. Failures are reported as errs.IOError.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.IO("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errs.IO("stat", path, err)
	}
	img, err := decode(f, info.Size())
	if err != nil {
		return nil, errs.IO("decode", path, err)
	}
	return img, nil
}

// WriteFile encodes m to path. The data goes to a temporary file in the same
// directory that is renamed over path only once it is complete, so a failed
// write never leaves a truncated raster behind.
func WriteFile(path string, m *Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.IO("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.IO("create", path, err)
	}
	tmpName := tmp.Name()

	if err := Encode(tmp, m); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.IO("encode", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.IO("close", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.IO("rename", path, err)
	}
	return nil
}

// header reads the whitespace separated PFM header fields and counts the
// bytes it consumes.
type header struct {
	br *bufio.Reader
	n  int64
}

// token skips leading whitespace and returns the next whitespace delimited
// token. The single whitespace byte ending the token is consumed, which
// matters after the scale field where binary data starts immediately.
func (h *header) token() (string, error) {
	var tok []byte
	for {
		b, err := h.br.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			if err == io.EOF {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		h.n++
		if isSpace(b) {
			if len(tok) == 0 {
				continue
			}
			return string(tok), nil
		}
		tok = append(tok, b)
	}
}

func (h *header) integer() (int, error) {
	tok, err := h.token()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(tok)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\r' || b == '\t'
}
