package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// LoadDrumkit parses a small bundled binary sample-set format used for
// demos and tests, independent of any tracker file format. Layout
// (big-endian, fixed-width header followed by variable sample data):
//
//	uint16 sampleCount
//	for each sample:
//	  uint8  instrumentID
//	  [24]byte name (NUL-padded)
//	  float64 c4Rate
//	  uint32 dataLength
//	  [dataLength]int8 data
func LoadDrumkit(raw []byte) (*Drumkit, error) {
	buf := bytes.NewReader(raw)

	var count uint16
	if err := binary.Read(buf, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("drumkit: reading sample count: %w", err)
	}

	kit := &Drumkit{Samples: make(map[int]*Sample, count)}
	for i := 0; i < int(count); i++ {
		header := struct {
			InstrumentID uint8
			Name         [24]byte
			C4Rate       float64
			DataLength   uint32
		}{}
		if err := binary.Read(buf, binary.BigEndian, &header); err != nil {
			return nil, fmt.Errorf("drumkit: reading sample %d header: %w", i, err)
		}
		_ = strings.TrimRight(string(header.Name[:]), "\x00") // name kept for debugging only

		data := make([]int8, header.DataLength)
		if err := binary.Read(buf, binary.BigEndian, data); err != nil {
			return nil, fmt.Errorf("drumkit: reading sample %d data: %w", i, err)
		}

		kit.Samples[int(header.InstrumentID)] = &Sample{Data: data, C4Rate: header.C4Rate}
	}
	return kit, nil
}
