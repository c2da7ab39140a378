// Package transform composes optional gzip compression and optional AES-GCM
// encryption around a byte stream. Writes compress then encrypt; reads
// decrypt then decompress.
package transform

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/hengadev/savex/internal/archiverr"
)

const DefaultBufferSize = 2048

// Settings select the transforms applied to one stream.
type Settings struct {
	Encrypt    bool
	Compress   bool
	Password   string
	BufferSize int
	KDF        Argon2Params
}

// Passthrough reports whether the pipeline leaves bytes untouched.
func (s Settings) Passthrough() bool { return !s.Encrypt && !s.Compress }

// CheckAppend rejects appending to a transformed stream.
func (s Settings) CheckAppend() error {
	if !s.Passthrough() {
		return archiverr.ErrAppendTransform
	}
	return nil
}

func (s Settings) withDefaults() (Settings, error) {
	if s.BufferSize <= 0 {
		s.BufferSize = DefaultBufferSize
	}
	if s.KDF == (Argon2Params{}) {
		s.KDF = DefaultArgon2Params()
	}
	if s.Encrypt && s.Password == "" {
		return s, archiverr.ErrMissingPassword
	}
	return s, nil
}

// Pipeline builds transform streams. It owns the derived key cache and is
// safe for concurrent use.
type Pipeline struct {
	keys *keyCache
}

func NewPipeline() *Pipeline {
	return &Pipeline{keys: newKeyCache()}
}

// NewWriter wraps dst. Closing the returned writer flushes every layer but
// does not close dst.
func (p *Pipeline) NewWriter(dst io.Writer, s Settings) (io.WriteCloser, error) {
	s, err := s.withDefaults()
	if err != nil {
		return nil, err
	}

	w := &layeredWriter{Writer: dst}
	if s.Encrypt {
		ew, err := newEncryptWriter(dst, s.Password, s.BufferSize, s.KDF, p.keys)
		if err != nil {
			return nil, err
		}
		w.Writer = ew
		w.closers = append(w.closers, ew)
	}
	if s.Compress {
		gw := gzip.NewWriter(w.Writer)
		w.Writer = gw
		// outermost layer closes first
		w.closers = append([]io.Closer{gw}, w.closers...)
	}
	return w, nil
}

// NewReader wraps src with the inverse of NewWriter.
func (p *Pipeline) NewReader(src io.Reader, s Settings) (io.ReadCloser, error) {
	s, err := s.withDefaults()
	if err != nil {
		return nil, err
	}

	var r io.Reader = src
	if s.Encrypt {
		dr, err := newDecryptReader(src, s.Password, p.keys)
		if err != nil {
			return nil, err
		}
		r = dr
	}
	if !s.Compress {
		return io.NopCloser(r), nil
	}

	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, decompressionError(err)
	}
	return &gunzipReader{gz: gr}, nil
}

// Encode runs data through the write side of the pipeline.
func (p *Pipeline) Encode(data []byte, s Settings) ([]byte, error) {
	if s.Passthrough() {
		return data, nil
	}

	var buf bytes.Buffer
	w, err := p.NewWriter(&buf, s)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode runs data through the read side of the pipeline.
func (p *Pipeline) Decode(data []byte, s Settings) ([]byte, error) {
	if s.Passthrough() {
		return data, nil
	}

	r, err := p.NewReader(bytes.NewReader(data), s)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type layeredWriter struct {
	io.Writer
	closers []io.Closer
}

func (w *layeredWriter) Close() error {
	var errs []error
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// gunzipReader reports gzip failures as ErrDecompressionFailed while
// letting decryption failures from the layer below through unchanged.
type gunzipReader struct {
	gz *gzip.Reader
}

func (r *gunzipReader) Read(p []byte) (int, error) {
	n, err := r.gz.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, decompressionError(err)
	}
	return n, err
}

func (r *gunzipReader) Close() error { return r.gz.Close() }

func decompressionError(err error) error {
	if errors.Is(err, archiverr.ErrTransform) {
		return err
	}
	return fmt.Errorf("%w: %v", archiverr.ErrDecompressionFailed, err)
}
