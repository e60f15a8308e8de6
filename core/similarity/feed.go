package similarity

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
)

// Feed is a lazily consumed source of score records.
// Next returns io.EOF once the feed is exhausted.
type Feed interface {
	Next() (model.ScoreRecord, error)
}

// SliceFeed serves records from memory.
type SliceFeed struct {
	records []model.ScoreRecord
	pos     int
}

// NewSliceFeed creates a feed over the given records.
func NewSliceFeed(records []model.ScoreRecord) *SliceFeed {
	return &SliceFeed{records: records}
}

func (f *SliceFeed) Next() (model.ScoreRecord, error) {
	if f.pos >= len(f.records) {
		return model.ScoreRecord{}, io.EOF
	}
	r := f.records[f.pos]
	f.pos++
	return r, nil
}

// JSONLinesFeed decodes one score record per line.
type JSONLinesFeed struct {
	scanner *bufio.Scanner
	line    int
}

// NewJSONLinesFeed creates a feed reading from r.
func NewJSONLinesFeed(r io.Reader) *JSONLinesFeed {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &JSONLinesFeed{scanner: scanner}
}

func (f *JSONLinesFeed) Next() (model.ScoreRecord, error) {
	for f.scanner.Scan() {
		f.line++
		line := f.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r model.ScoreRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return model.ScoreRecord{}, helper.NewDataIntegrityError(fmt.Sprintf("malformed score record: %v", err), fmt.Sprintf("line %d", f.line))
		}
		return r, nil
	}
	if err := f.scanner.Err(); err != nil {
		return model.ScoreRecord{}, helper.NewError("read scores", err)
	}
	return model.ScoreRecord{}, io.EOF
}

// Load drains the feed into a new MemoryStore. The first malformed record
// aborts the load.
func Load(ctx context.Context, feed Feed) (*MemoryStore, error) {
	store := NewMemoryStore()
	if err := LoadInto(ctx, store, feed); err != nil {
		return nil, err
	}
	return store, nil
}

// LoadInto drains the feed into an existing store, so several feeds can be
// merged. Duplicates across feeds keep the maximum score.
func LoadInto(ctx context.Context, store *MemoryStore, feed Feed) error {
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		r, err := feed.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		e, err := r.Edge()
		if err != nil {
			return helper.NewDataIntegrityError(err.Error(), fmt.Sprintf("record %d", n))
		}
		if err := store.Add(e); err != nil {
			return err
		}
	}
}
