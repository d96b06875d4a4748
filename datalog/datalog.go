// Package datalog writes barometer samples to a sqlite database from a
// background writer and reads them back for plotting.
package datalog

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logger "github.com/d2r2/go-logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ricochet2200/go-disk-usage/du"
)

var lg = logger.NewPackageLogger("datalog", logger.InfoLevel)

const (
	// DefaultMinFree is the free space below which rows are dropped.
	DefaultMinFree = 50 * 1024 * 1024

	queueLen       = 10240
	diskCheckEvery = 30 * time.Second
)

var errClosed = errors.New("datalog: closed")

// freeSpace is replaced in tests.
var freeSpace = func(dir string) uint64 {
	return du.NewDiskUsage(dir).Free()
}

type dataLogRow struct {
	tbl  string
	data interface{}
}

// Log owns the database and the writer goroutine. Rows are queued by Write
// and inserted in order.
type Log struct {
	// atomic, first for 64-bit alignment on arm
	queued  uint64
	handled uint64
	written uint64
	dropped uint64

	db      *sql.DB
	dir     string
	minFree uint64

	rows chan dataLogRow
	done chan struct{}

	mu     sync.Mutex // guards tables and closed against Write
	tables map[string][]column
	closed bool

	lowDisk   bool
	lastCheck time.Time
}

// Open opens or creates the database at path. ":memory:" is accepted for a
// throwaway log. minFree of 0 selects DefaultMinFree.
func Open(path string, minFree uint64) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("datalog: open %s: %w", path, err)
	}
	// one connection so that :memory: databases are shared by reader and writer
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("datalog: open %s: %w", path, err)
	}
	if minFree == 0 {
		minFree = DefaultMinFree
	}
	dir := filepath.Dir(path)
	if path == ":memory:" {
		dir = "."
	}
	l := &Log{
		db:      db,
		dir:     dir,
		minFree: minFree,
		rows:    make(chan dataLogRow, queueLen),
		done:    make(chan struct{}),
		tables:  make(map[string][]column),
	}
	go l.writer()
	return l, nil
}

// CreateTable makes sure tbl exists with a column for every field of the
// struct example. It is called by Write on first use of a table.
func (l *Log) CreateTable(tbl string, example interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.table(tbl, reflect.TypeOf(example))
	return err
}

func (l *Log) table(tbl string, t reflect.Type) ([]column, error) {
	if cols, ok := l.tables[tbl]; ok {
		return cols, nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("datalog: table %s: %s is not a struct", tbl, t)
	}
	cols := columnsOf(t)
	fields := make([]string, 0, len(cols))
	for _, c := range cols {
		fields = append(fields, quote(c.name)+" "+c.m.FieldType)
	}
	tblCreate := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT, %s)",
		tbl, strings.Join(fields, ", "))
	lg.Debugf("%s", tblCreate)
	if _, err := l.db.Exec(tblCreate); err != nil {
		return nil, fmt.Errorf("datalog: create %s: %w", tbl, err)
	}
	l.tables[tbl] = cols
	return cols, nil
}

// Write queues data, a struct, for insertion into tbl. It never blocks: when
// the queue is full or the log is closed the row is dropped and false is
// returned.
func (l *Log) Write(tbl string, data interface{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		atomic.AddUint64(&l.dropped, 1)
		return false
	}
	select {
	case l.rows <- dataLogRow{tbl: tbl, data: data}:
		atomic.AddUint64(&l.queued, 1)
		return true
	default:
		atomic.AddUint64(&l.dropped, 1)
		return false
	}
}

func (l *Log) insertData(r dataLogRow) error {
	val := reflect.ValueOf(r.data)
	l.mu.Lock()
	cols, err := l.table(r.tbl, val.Type())
	l.mu.Unlock()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(cols))
	values := make([]interface{}, 0, len(cols))
	for _, c := range cols {
		keys = append(keys, quote(c.name))
		values = append(values, c.m.Marshal(val.FieldByIndex(c.index)))
	}
	tblInsert := fmt.Sprintf("INSERT INTO %s (%s) VALUES(%s)", r.tbl, strings.Join(keys, ","),
		strings.TrimSuffix(strings.Repeat("?,", len(keys)), ","))
	if _, err := l.db.Exec(tblInsert, values...); err != nil {
		return fmt.Errorf("datalog: insert into %s: %w", r.tbl, err)
	}
	return nil
}

func quote(name string) string {
	return `"` + name + `"`
}

// diskFull checks free space at most every diskCheckEvery.
func (l *Log) diskFull(now time.Time) bool {
	if now.Sub(l.lastCheck) < diskCheckEvery && !l.lastCheck.IsZero() {
		return l.lowDisk
	}
	l.lastCheck = now
	free := freeSpace(l.dir)
	low := free < l.minFree
	if low != l.lowDisk {
		if low {
			lg.Warnf("only %d bytes free in %s, pausing the data log", free, l.dir)
		} else {
			lg.Infof("%d bytes free in %s, resuming the data log", free, l.dir)
		}
	}
	l.lowDisk = low
	return low
}

func (l *Log) writer() {
	defer close(l.done)
	for r := range l.rows {
		switch {
		case l.diskFull(time.Now()):
			atomic.AddUint64(&l.dropped, 1)
		default:
			if err := l.insertData(r); err != nil {
				lg.Errorf("%v", err)
				atomic.AddUint64(&l.dropped, 1)
			} else {
				atomic.AddUint64(&l.written, 1)
			}
		}
		atomic.AddUint64(&l.handled, 1)
	}
}

// Stats returns the number of rows inserted and dropped so far.
func (l *Log) Stats() (written, dropped uint64) {
	return atomic.LoadUint64(&l.written), atomic.LoadUint64(&l.dropped)
}

// Flush waits until every row queued before the call has been handled, or
// timeout passes.
func (l *Log) Flush(timeout time.Duration) bool {
	target := atomic.LoadUint64(&l.queued)
	deadline := time.Now().Add(timeout)
	for atomic.LoadUint64(&l.handled) < target {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

// Close drains the queue and closes the database.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errClosed
	}
	l.closed = true
	close(l.rows)
	l.mu.Unlock()
	<-l.done
	return l.db.Close()
}
