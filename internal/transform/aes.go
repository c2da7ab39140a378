package transform

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hengadev/savex/internal/archiverr"
)

const (
	// maxChunkSize defines the maximum allowed chunk size for stream decryption
	// to prevent memory exhaustion attacks
	maxChunkSize = 10 * 1024 * 1024

	streamVersion byte = 1
	// magic(4) version(1) salt(16) memory(4) iterations(4) parallelism(1) chunk size(4)
	headerLength = 4 + 1 + saltLength + 4 + 4 + 1 + 4
)

var streamMagic = []byte{'S', 'V', 'X', 'E'}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// chunkAAD binds a chunk to its position and marks the last one, so chunks
// cannot be reordered, dropped or truncated unnoticed.
func chunkAAD(index uint64, final bool) []byte {
	aad := make([]byte, 9)
	binary.BigEndian.PutUint64(aad, index)
	if final {
		aad[8] = 1
	}
	return aad
}

// encryptWriter seals plaintext into length-prefixed AES-GCM chunks of
// chunkSize bytes. Close must be called to write the final chunk.
type encryptWriter struct {
	dst       io.Writer
	aead      cipher.AEAD
	buf       []byte
	chunkSize int
	index     uint64
	closed    bool
}

func newEncryptWriter(dst io.Writer, password string, chunkSize int, params Argon2Params, keys *keyCache) (*encryptWriter, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", archiverr.ErrInvalidConfiguration, err)
	}
	if chunkSize <= 0 || chunkSize > maxChunkSize {
		return nil, fmt.Errorf("%w: buffer size %d out of range", archiverr.ErrInvalidConfiguration, chunkSize)
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	aead, err := newGCM(keys.derive(password, salt, params))
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, headerLength)
	header = append(header, streamMagic...)
	header = append(header, streamVersion)
	header = append(header, salt...)
	header = binary.LittleEndian.AppendUint32(header, params.Memory)
	header = binary.LittleEndian.AppendUint32(header, params.Iterations)
	header = append(header, params.Parallelism)
	header = binary.LittleEndian.AppendUint32(header, uint32(chunkSize))
	if _, err := dst.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write stream header: %w", err)
	}

	return &encryptWriter{
		dst:       dst,
		aead:      aead,
		buf:       make([]byte, 0, chunkSize),
		chunkSize: chunkSize,
	}, nil
}

func (w *encryptWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, archiverr.ErrClosed
	}
	written := 0
	for len(p) > 0 {
		// a full buffer is only sealed once more data arrives, so the last
		// chunk is always the one sealed by Close
		if len(w.buf) == w.chunkSize {
			if err := w.seal(false); err != nil {
				return written, err
			}
		}
		n := min(w.chunkSize-len(w.buf), len(p))
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		written += n
	}
	return written, nil
}

func (w *encryptWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.seal(true)
}

func (w *encryptWriter) seal(final bool) error {
	nonce := make([]byte, w.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := w.aead.Seal(nonce, nonce, w.buf, chunkAAD(w.index, final))

	// Write chunk length as 4-byte header
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(sealed)))
	if _, err := w.dst.Write(length[:]); err != nil {
		return fmt.Errorf("failed to write chunk length: %w", err)
	}
	if _, err := w.dst.Write(sealed); err != nil {
		return fmt.Errorf("failed to write to output stream: %w", err)
	}

	w.index++
	w.buf = w.buf[:0]
	return nil
}

// decryptReader opens chunks written by encryptWriter. Every failure is
// reported as ErrDecryptionFailed.
type decryptReader struct {
	src      *bufio.Reader
	aead     cipher.AEAD
	maxChunk int
	index    uint64
	plain    []byte
	done     bool
	err      error
}

func newDecryptReader(src io.Reader, password string, keys *keyCache) (*decryptReader, error) {
	br := bufio.NewReader(src)

	header := make([]byte, headerLength)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: stream header: %v", archiverr.ErrDecryptionFailed, err)
	}
	if string(header[:4]) != string(streamMagic) || header[4] != streamVersion {
		return nil, fmt.Errorf("%w: not an encrypted stream", archiverr.ErrDecryptionFailed)
	}

	pos := 5
	salt := header[pos : pos+saltLength]
	pos += saltLength
	params := Argon2Params{
		Memory:     binary.LittleEndian.Uint32(header[pos:]),
		Iterations: binary.LittleEndian.Uint32(header[pos+4:]),
	}
	params.Parallelism = header[pos+8]
	chunkSize := binary.LittleEndian.Uint32(header[pos+9:])

	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", archiverr.ErrDecryptionFailed, err)
	}
	if chunkSize == 0 || chunkSize > maxChunkSize {
		return nil, fmt.Errorf("%w: chunk size %d out of range", archiverr.ErrDecryptionFailed, chunkSize)
	}

	aead, err := newGCM(keys.derive(password, salt, params))
	if err != nil {
		return nil, err
	}
	return &decryptReader{
		src:      br,
		aead:     aead,
		maxChunk: int(chunkSize) + aead.NonceSize() + aead.Overhead(),
	}, nil
}

func (r *decryptReader) Read(p []byte) (int, error) {
	for len(r.plain) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.done {
			return 0, io.EOF
		}
		r.err = r.next()
	}
	n := copy(p, r.plain)
	r.plain = r.plain[n:]
	return n, nil
}

func (r *decryptReader) next() error {
	var lengthBytes [4]byte
	if _, err := io.ReadFull(r.src, lengthBytes[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: stream truncated before final chunk", archiverr.ErrDecryptionFailed)
		}
		return fmt.Errorf("%w: failed to read chunk length: %v", archiverr.ErrDecryptionFailed, err)
	}

	length := binary.BigEndian.Uint32(lengthBytes[:])
	if length < uint32(r.aead.NonceSize()+r.aead.Overhead()) || int(length) > r.maxChunk {
		return fmt.Errorf("%w: invalid chunk size %d", archiverr.ErrDecryptionFailed, length)
	}

	sealed := make([]byte, length)
	if _, err := io.ReadFull(r.src, sealed); err != nil {
		return fmt.Errorf("%w: failed to read encrypted chunk: %v", archiverr.ErrDecryptionFailed, err)
	}

	_, peekErr := r.src.Peek(1)
	final := errors.Is(peekErr, io.EOF)

	nonceSize := r.aead.NonceSize()
	plain, err := r.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], chunkAAD(r.index, final))
	if err != nil {
		return fmt.Errorf("%w: chunk %d: wrong password or corrupt data", archiverr.ErrDecryptionFailed, r.index)
	}

	r.index++
	r.plain = plain
	r.done = final
	return nil
}
