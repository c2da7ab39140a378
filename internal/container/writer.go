package container

import "github.com/hengadev/savex/internal/archiverr"

// BaseFunc loads the currently persisted container, or nil when none exists.
type BaseFunc func() (*Container, error)

// CommitFunc atomically replaces the persisted container with data.
type CommitFunc func(data []byte) error

// Writer buffers writes and deletions until Save.
type Writer struct {
	codec      *Codec
	base       BaseFunc
	commit     CommitFunc
	pending    *Container
	tombstones map[string]struct{}
	closed     bool
}

func NewWriter(codec *Codec, base BaseFunc, commit CommitFunc) *Writer {
	return &Writer{
		codec:      codec,
		base:       base,
		commit:     commit,
		pending:    New(),
		tombstones: make(map[string]struct{}),
	}
}

// Write buffers value under key.
func (w *Writer) Write(key string, value any) error {
	tv, err := w.codec.Tag(value)
	if err != nil {
		return err
	}
	return w.WriteTagged(key, tv)
}

// WriteTagged buffers an already encoded value.
func (w *Writer) WriteTagged(key string, tv TaggedValue) error {
	if w.closed {
		return archiverr.ErrClosed
	}
	w.pending.Set(key, tv)
	return nil
}

// MarkKeyForDeletion drops key on the next Save, including a value
// buffered for it by this writer.
func (w *Writer) MarkKeyForDeletion(key string) {
	w.pending.Delete(key)
	w.tombstones[key] = struct{}{}
}

// Save merges the buffered state into the persisted container and commits
// the result. Surviving keys keep their order, overwritten keys are replaced
// in place and new keys are appended.
func (w *Writer) Save() error {
	if w.closed {
		return archiverr.ErrClosed
	}

	merged, err := w.base()
	if err != nil {
		return err
	}
	if merged == nil {
		merged = New()
	}
	for key := range w.tombstones {
		merged.Delete(key)
	}
	for key, tv := range w.pending.All() {
		merged.Set(key, tv)
	}

	if err := w.commit(Encode(merged)); err != nil {
		return err
	}
	w.pending = New()
	w.tombstones = make(map[string]struct{})
	return nil
}

// Close discards anything not saved.
func (w *Writer) Close() error {
	w.closed = true
	w.pending = New()
	w.tombstones = make(map[string]struct{})
	return nil
}
