package rowstore

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relaxdb/engine/internal/dberr"
	"github.com/relaxdb/engine/internal/index"
)

// TextStore backs a table with an external delimited text file, the way
// HSQLDB's TEXT tables map a table onto a CSV-like file rather than the
// database's own data file. Row position is the byte offset of the
// row's line within the file; deleted lines are blanked in place rather
// than physically removed, keeping every other row's position stable.
type TextStore struct {
	mu        sync.Mutex
	path      string
	delim     byte
	specs     []ColumnSpec
	accessors []*index.Node
}

func NewTextStore(path string, delim byte, specs []ColumnSpec, numIndex int) *TextStore {
	if delim == 0 {
		delim = ','
	}
	return &TextStore{
		path:      path,
		delim:     delim,
		specs:     specs,
		accessors: make([]*index.Node, numIndex),
	}
}

func (s *TextStore) encodeLine(values []any) (string, error) {
	fields := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			fields[i] = ""
			continue
		}
		switch s.specs[i].Type {
		case TypeString:
			fields[i] = strings.ReplaceAll(fmt.Sprint(v), string(s.delim), "\\"+string(s.delim))
		default:
			fields[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(fields, string(s.delim)), nil
}

func (s *TextStore) decodeLine(line string) ([]any, error) {
	fields := strings.Split(line, string(s.delim))
	if len(fields) != len(s.specs) {
		return nil, fmt.Errorf("rowstore: text row has %d fields, want %d", len(fields), len(s.specs))
	}
	values := make([]any, len(fields))
	for i, f := range fields {
		f = strings.ReplaceAll(f, "\\"+string(s.delim), string(s.delim))
		if f == "" {
			values[i] = nil
			continue
		}
		switch s.specs[i].Type {
		case TypeInt64, TypeTimestamp:
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, err
			}
			values[i] = n
		case TypeFloat64:
			n, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, err
			}
			values[i] = n
		case TypeBool:
			values[i] = f == "true" || f == "1"
		case TypeBytes:
			values[i] = []byte(f)
		default:
			values[i] = f
		}
	}
	return values, nil
}

func (s *TextStore) GetNewCachedObject(columnValues []any) (*Row, error) {
	line, err := s.encodeLine(columnValues)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pos := info.Size()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return nil, err
	}

	return NewRow(pos, columnValues, len(s.accessors)), nil
}

func (s *TextStore) Get(pos int64) (*Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(pos, 0); err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return nil, dberr.New(dberr.KindNotFound, "", "row not found in text store")
	}
	line = strings.TrimSuffix(line, "\n")
	if strings.TrimLeft(line, " ") == "" {
		return nil, dberr.New(dberr.KindNotFound, "", "row deleted")
	}

	values, err := s.decodeLine(line)
	if err != nil {
		return nil, err
	}
	return NewRow(pos, values, len(s.accessors)), nil
}

func (s *TextStore) GetAccessor(i int) *index.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.accessors) {
		return nil
	}
	return s.accessors[i]
}

func (s *TextStore) SetAccessor(i int, n *index.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.accessors) {
		return
	}
	s.accessors[i] = n
}

func (s *TextStore) Commit(row *Row) error { return nil }

// Remove blanks the line at pos rather than shrinking the file, so
// positions of every other row remain valid.
func (s *TextStore) Remove(pos int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(pos, 0); err != nil {
		return err
	}
	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return nil
	}
	blank := make([]byte, len(strings.TrimSuffix(line, "\n")))
	for i := range blank {
		blank[i] = ' '
	}
	_, err = f.WriteAt(blank, pos)
	return err
}

func (s *TextStore) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.Remove(s.path)
}
