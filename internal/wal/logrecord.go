package wal

import (
	"bufio"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/relaxdb/engine/internal/alias/bx"
)

// LogicalLog records the logical insert/delete actions a session commits
// against a table, independent of AppendPageImage's physical redo log.
// It exists to support deleteNoCheckFromLog-style replay, where a row
// must be re-located by value rather than by page position.
type LogicalLog struct {
	mu   sync.Mutex
	f    *os.File
	path string
	lsn  uint64
}

const (
	opInsert       uint8 = 1
	opDelete       uint8 = 2
	logicalMagic   uint32 = 0x4C4F474F // "LOGO"
	logicalVersion uint16 = 1
)

// LogicalRecord is one decoded entry from a LogicalLog.
type LogicalRecord struct {
	LSN       uint64
	Op        uint8
	TableName string
	Payload   []byte // encoded row bytes (see internal/rowstore.EncodeRow)
}

func OpenLogicalLog(dir string) (*LogicalLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "oplog.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &LogicalLog{f: f, path: path}, nil
}

func (l *LogicalLog) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.f.Close()
	l.f = nil
	return err
}

func (l *LogicalLog) appendRecord(op uint8, tableName string, payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return 0, ErrNoWALFile
	}

	l.lsn++
	lsn := l.lsn

	tbl := []byte(tableName)
	fixed := 4 + 2 + 1 + 1 + 4 + 4 + 8 + 2 + 4 // magic ver op rsv totalLen crc lsn tblLen payloadLen
	totalLen := fixed + len(tbl) + len(payload)

	buf := make([]byte, totalLen)
	off := 0
	putU32 := func(v uint32) { bx.PutU32(buf[off:off+4], v); off += 4 }
	putU16 := func(v uint16) { bx.PutU16(buf[off:off+2], v); off += 2 }
	putU64 := func(v uint64) { bx.PutU64(buf[off:off+8], v); off += 8 }

	putU32(logicalMagic)
	putU16(logicalVersion)
	buf[off] = op
	off++
	buf[off] = 0
	off++
	putU32(uint32(totalLen))

	crcOff := off
	putU32(0)

	putU64(lsn)
	putU16(uint16(len(tbl)))
	putU32(uint32(len(payload)))

	copy(buf[off:], tbl)
	off += len(tbl)
	copy(buf[off:], payload)
	off += len(payload)

	crc := crc32.ChecksumIEEE(buf[crcOff+4:])
	bx.PutU32(buf[crcOff:crcOff+4], crc)

	if _, err := l.f.Write(buf); err != nil {
		return 0, err
	}
	return lsn, nil
}

func (l *LogicalLog) AppendInsert(tableName string, encodedRow []byte) (uint64, error) {
	return l.appendRecord(opInsert, tableName, encodedRow)
}

func (l *LogicalLog) AppendDelete(tableName string, encodedRow []byte) (uint64, error) {
	return l.appendRecord(opDelete, tableName, encodedRow)
}

func (l *LogicalLog) Sync() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Sync()
}

// Replay reads every record in order and invokes fn for each, stopping
// on the first error fn returns and tolerating a torn tail record the
// same way the physical WAL does.
func (l *LogicalLog) Replay(fn func(rec LogicalRecord) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 1<<20)
	for {
		rec, err := readLogicalOne(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrShortRead) {
				return nil
			}
			return err
		}
		if err := fn(*rec); err != nil {
			return err
		}
	}
}

func readLogicalOne(r *bufio.Reader) (*LogicalRecord, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if bx.U32(hdr[:]) != logicalMagic {
		return nil, ErrBadMagic
	}

	var verB [2]byte
	if _, err := io.ReadFull(r, verB[:]); err != nil {
		return nil, err
	}
	if bx.U16(verB[:]) != logicalVersion {
		return nil, ErrBadRecord
	}

	op, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadByte(); err != nil {
		return nil, err
	}

	var lenB [4]byte
	if _, err := io.ReadFull(r, lenB[:]); err != nil {
		return nil, err
	}
	totalLen := bx.U32(lenB[:])

	var crcB [4]byte
	if _, err := io.ReadFull(r, crcB[:]); err != nil {
		return nil, err
	}
	wantCRC := bx.U32(crcB[:])

	restLen := int(totalLen) - (4 + 2 + 1 + 1 + 4 + 4)
	if restLen < 0 {
		return nil, ErrBadRecord
	}
	rest := make([]byte, restLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrShortRead
		}
		return nil, err
	}
	if crc32.ChecksumIEEE(rest) != wantCRC {
		return nil, ErrBadCRC
	}

	off := 0
	lsn := bx.U64(rest[off : off+8])
	off += 8
	tblLen := int(bx.U16(rest[off : off+2]))
	off += 2
	payloadLen := int(bx.U32(rest[off : off+4]))
	off += 4

	if off+tblLen+payloadLen > len(rest) {
		return nil, ErrBadRecord
	}
	table := string(rest[off : off+tblLen])
	off += tblLen
	payload := make([]byte, payloadLen)
	copy(payload, rest[off:off+payloadLen])

	return &LogicalRecord{LSN: lsn, Op: op, TableName: table, Payload: payload}, nil
}
