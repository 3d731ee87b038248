package sqlclient

import "errors"

// ErrNoRow is returned by FirstOrErr/LastOrErr on an empty result set.
var ErrNoRow = errors.New("sqlclient: result set is empty")

// Row is one result row keyed by column name.
type Row map[string]any

// Rows is the ordered result set of one query. It is a dedicated value
// type so that positional helpers live on the sequence itself instead
// of being bolted onto a raw slice.
type Rows []Row

// First returns the first row and whether one exists.
func (rs Rows) First() (Row, bool) {
	if len(rs) == 0 {
		return nil, false
	}
	return rs[0], true
}

// Last returns the last row and whether one exists.
func (rs Rows) Last() (Row, bool) {
	if len(rs) == 0 {
		return nil, false
	}
	return rs[len(rs)-1], true
}

// FirstOrErr returns the first row or ErrNoRow.
func (rs Rows) FirstOrErr() (Row, error) {
	if row, ok := rs.First(); ok {
		return row, nil
	}
	return nil, ErrNoRow
}

// LastOrErr returns the last row or ErrNoRow.
func (rs Rows) LastOrErr() (Row, error) {
	if row, ok := rs.Last(); ok {
		return row, nil
	}
	return nil, ErrNoRow
}
