package indexer

import "fmt"

// CursorRange represents an inclusive range of event cursors.
type CursorRange struct {
	From uint64
	To   uint64
}

// Size returns the number of cursors in the range.
func (r CursorRange) Size() int {
	return int(r.To - r.From + 1)
}

// SplitRange splits the count cursors starting at start into pages of at
// most pageSize cursors.
func SplitRange(start uint64, count int64, pageSize int) ([]CursorRange, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be greater than zero")
	}
	if count < 0 {
		return nil, fmt.Errorf("cursor count must not be negative")
	}
	if count == 0 {
		return nil, nil
	}

	to := start + uint64(count) - 1
	ranges := make([]CursorRange, 0, (count+int64(pageSize)-1)/int64(pageSize))
	from := start
	for {
		end := from + uint64(pageSize) - 1
		if end >= to {
			ranges = append(ranges, CursorRange{From: from, To: to})
			break
		}
		ranges = append(ranges, CursorRange{From: from, To: end})
		from = end + 1
	}

	return ranges, nil
}
