package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 256 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 128 * 1024
	defaultFilePrefix            = "journal"

	maxPayloadLen = int(^uint32(0) >> 1)
)

// Config controls journal writer behavior.
type Config struct {
	Dir             string
	SegmentMaxBytes int64
	QueueSize       int
	BufferSize      int
	FilePrefix      string
	FlushInterval   time.Duration
	SyncInterval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes <= 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

type appendRequest struct {
	header  schema.EventHeader
	payload []byte
}

type segment struct {
	file *os.File
	buf  *bufio.Writer
	size int64
}

// Writer appends framed records to journal segments from a buffered
// queue. Appends never block the caller; a full queue drops the record
// with an error the caller can count.
type Writer struct {
	cfg   Config
	ch    chan appendRequest
	wg    sync.WaitGroup
	fault atomic.Value

	seg   *segment
	segID uint64

	started uint32
	closed  uint32
}

// NewWriter creates a journal writer and ensures the directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "journal dir is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{
		cfg: cfg,
		ch:  make(chan appendRequest, cfg.QueueSize),
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return errors.New("journal writer already started")
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops the writer and flushes buffered data.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first write error observed, if any.
func (w *Writer) Err() error {
	if v := w.fault.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// TryAppend enqueues one event without blocking. The payload is copied
// so the caller may reuse its buffer.
func (w *Writer) TryAppend(header schema.EventHeader, payload []byte) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return exception.ErrQueueClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return errors.New("journal writer not started")
	}
	if err := w.Err(); err != nil {
		return err
	}
	if len(payload) > maxPayloadLen {
		return ErrPayloadTooLarge
	}
	if header.Version == 0 {
		header.Version = schema.SchemaVersion
	}
	req := appendRequest{header: header}
	if len(payload) > 0 {
		req.payload = make([]byte, len(payload))
		copy(req.payload, payload)
	}
	select {
	case w.ch <- req:
		return nil
	default:
		return exception.ErrQueueFull
	}
}

func (w *Writer) run(ctx context.Context) {
	headerBuf := make([]byte, recordHeaderSize)

	var flushC, syncC <-chan time.Time
	if w.cfg.FlushInterval > 0 {
		t := time.NewTicker(w.cfg.FlushInterval)
		defer t.Stop()
		flushC = t.C
	}
	if w.cfg.SyncInterval > 0 {
		t := time.NewTicker(w.cfg.SyncInterval)
		defer t.Stop()
		syncC = t.C
	}

	defer func() {
		if err := w.closeSegment(); err != nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drain(headerBuf)
			return
		case req, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.writeRecord(headerBuf, req); err != nil {
				w.setErr(err)
				return
			}
		case <-flushC:
			if w.seg != nil {
				if err := w.seg.buf.Flush(); err != nil {
					w.setErr(err)
					return
				}
			}
		case <-syncC:
			if err := w.syncSegment(); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

// drain writes whatever is already queued, then stops.
func (w *Writer) drain(headerBuf []byte) {
	for {
		select {
		case req, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.writeRecord(headerBuf, req); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) writeRecord(headerBuf []byte, req appendRequest) error {
	recordSize := int64(recordHeaderSize + len(req.payload) + recordChecksumSize)
	if w.seg == nil || w.seg.size+recordSize > w.cfg.SegmentMaxBytes {
		if err := w.closeSegment(); err != nil {
			return err
		}
		if err := w.openSegment(); err != nil {
			return err
		}
	}

	encodeRecordHeader(headerBuf, req.header, len(req.payload))
	var checksumBuf [recordChecksumSize]byte
	binary.LittleEndian.PutUint32(checksumBuf[:], checksum(headerBuf, req.payload))

	if _, err := w.seg.buf.Write(headerBuf); err != nil {
		return err
	}
	if len(req.payload) > 0 {
		if _, err := w.seg.buf.Write(req.payload); err != nil {
			return err
		}
	}
	if _, err := w.seg.buf.Write(checksumBuf[:]); err != nil {
		return err
	}
	w.seg.size += recordSize
	return nil
}

func (w *Writer) openSegment() error {
	ts := time.Now().UTC().Format("20060102-150405")
	for {
		w.segID++
		name := fmt.Sprintf("%s-%s-%06d.log", w.cfg.FilePrefix, ts, w.segID)
		file, err := os.OpenFile(filepath.Join(w.cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return err
		}
		w.seg = &segment{file: file, buf: bufio.NewWriterSize(file, w.cfg.BufferSize)}
		return nil
	}
}

func (w *Writer) syncSegment() error {
	if w.seg == nil {
		return nil
	}
	if err := w.seg.buf.Flush(); err != nil {
		return err
	}
	return w.seg.file.Sync()
}

func (w *Writer) closeSegment() error {
	if w.seg == nil {
		return nil
	}
	seg := w.seg
	w.seg = nil
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return err
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return err
	}
	return seg.file.Close()
}

func (w *Writer) setErr(err error) {
	if err == nil || w.fault.Load() != nil {
		return
	}
	w.fault.Store(err)
}
