package bench

import (
	"crypto/rand"
	"strings"

	"github.com/user/streambench/pkg/streamapi"
)

// structuredOverhead approximates the encoded size of the structured
// record's fixed fields; the padding string makes up the rest. Only an
// order-of-magnitude match to RecordSize is needed for throughput
// accounting.
const structuredOverhead = 96

// MakeRecord builds the payload template all writes copy from. The template
// carries no ordering key; the producer loop assigns one per send.
func MakeRecord(cfg Config) streamapi.Record {
	if cfg.RecordType == RecordTypeRaw {
		return makeRawRecord(cfg.RecordSize)
	}
	return makeStructuredRecord(cfg.RecordSize)
}

// makeRawRecord returns an opaque payload of exactly size random bytes.
func makeRawRecord(size int) streamapi.Record {
	payload := make([]byte, size)
	rand.Read(payload)
	return streamapi.Record{Raw: payload}
}

// makeStructuredRecord returns the fixed-schema structured payload, padded
// so its encoded size approximates the configured record size.
func makeStructuredRecord(size int) streamapi.Record {
	return streamapi.Record{
		HRecord: streamapi.HRecord{
			"int":     10,
			"boolean": true,
			"array":   []int{1, 2, 3},
			"string":  strings.Repeat("h", paddingSize(size)),
		},
	}
}

func paddingSize(recordSize int) int {
	if recordSize > structuredOverhead {
		return recordSize - structuredOverhead
	}
	return 0
}
