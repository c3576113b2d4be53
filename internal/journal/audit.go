package journal

import (
	"main/internal/schema"
)

// Audit is the aggregate view of one journal directory, produced for
// post-session review.
type Audit struct {
	Records     int
	ByType      map[schema.EventType]int
	FirstSeq    uint64
	LastSeq     uint64
	FirstTsRecv int64
	LastTsRecv  int64
}

// Summarize replays a journal directory and tallies its records. A
// checksum or framing error aborts the walk so truncated segments are
// not silently under-counted.
func Summarize(dir, filePrefix string) (Audit, error) {
	audit := Audit{ByType: make(map[schema.EventType]int)}
	err := Walk(dir, filePrefix, ReaderOptions{}, func(header schema.EventHeader, _ []byte) error {
		if audit.Records == 0 {
			audit.FirstSeq = header.Seq
			audit.FirstTsRecv = header.TsRecv
		}
		audit.Records++
		audit.ByType[header.Type]++
		audit.LastSeq = header.Seq
		audit.LastTsRecv = header.TsRecv
		return nil
	})
	return audit, err
}
