package spk

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// dafSummary is one parsed summary entry from a DAF file's summary
// record chain: nd doubles followed by ni 32-bit integers, packed as
// described in the NAIF DAF design (spk.go's segment layout and
// pck.go's orientation-segment layout both start from this).
type dafSummary struct {
	doubles []float64
	ints    []int32
}

// openDAFFileRecord reads record 1 of filename, checks its LOCIDW
// against wantLocidw (e.g. "DAF/SPK " or "DAF/PCK "), and returns the
// open file plus the header fields needed to walk the summary chain.
// The caller owns the returned file and must close it.
func openDAFFileRecord(filename, wantLocidw string) (f *os.File, nd, ni, fward int, err error) {
	f, err = os.Open(filename)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	fileRec := make([]byte, recordLen)
	if _, err := f.Read(fileRec); err != nil {
		f.Close()
		return nil, 0, 0, 0, fmt.Errorf("reading file record: %w", err)
	}

	locidw := string(fileRec[0:8])
	if locidw != wantLocidw {
		f.Close()
		return nil, 0, 0, 0, fmt.Errorf("spk: not a %q file: got %q", wantLocidw, locidw)
	}

	nd = int(binary.LittleEndian.Uint32(fileRec[8:12]))
	ni = int(binary.LittleEndian.Uint32(fileRec[12:16]))
	fward = int(binary.LittleEndian.Uint32(fileRec[76:80]))
	return f, nd, ni, fward, nil
}

// walkDAFSummaries follows the summary-record chain starting at fward
// and returns every summary entry, each split into its nd doubles and
// ni ints per the DAF packing convention.
func walkDAFSummaries(f *os.File, fward, nd, ni int) ([]dafSummary, error) {
	summaryDoubles := nd + (ni+1)/2
	summaryBytes := summaryDoubles * 8
	intOff := nd * 8

	var out []dafSummary
	recNum := fward
	for recNum != 0 {
		offset := int64(recNum-1) * recordLen
		if _, err := f.Seek(offset, 0); err != nil {
			return nil, err
		}
		rec := make([]byte, recordLen)
		if _, err := f.Read(rec); err != nil {
			return nil, err
		}

		nextRec := math.Float64frombits(binary.LittleEndian.Uint64(rec[0:8]))
		nSummaries := int(math.Float64frombits(binary.LittleEndian.Uint64(rec[16:24])))

		pos := 24
		for i := 0; i < nSummaries; i++ {
			summary := rec[pos : pos+summaryBytes]

			doubles := make([]float64, nd)
			for d := 0; d < nd; d++ {
				doubles[d] = math.Float64frombits(binary.LittleEndian.Uint64(summary[d*8 : d*8+8]))
			}
			ints := make([]int32, ni)
			for j := 0; j < ni; j++ {
				ints[j] = int32(binary.LittleEndian.Uint32(summary[intOff+j*4:]))
			}
			out = append(out, dafSummary{doubles: doubles, ints: ints})

			pos += summaryBytes
		}

		if nextRec == 0.0 {
			break
		}
		recNum = int(nextRec)
	}
	return out, nil
}

// readDAFWords reads the inclusive word range [startWord, endWord]
// (1-based, NAIF convention) as little-endian float64s.
func readDAFWords(f *os.File, startWord, endWord int) ([]float64, error) {
	nWords := endWord - startWord + 1
	dataOffset := int64(startWord-1) * 8
	if _, err := f.Seek(dataOffset, 0); err != nil {
		return nil, err
	}
	raw := make([]byte, nWords*8)
	if _, err := f.Read(raw); err != nil {
		return nil, err
	}
	data := make([]float64, nWords)
	for j := range data {
		data[j] = math.Float64frombits(binary.LittleEndian.Uint64(raw[j*8 : j*8+8]))
	}
	return data, nil
}

// chebyshevRecordMetadata pulls the trailing (init, intLen, rsize, n)
// words common to both SPK type 2/3 and PCK type 2 segments.
func chebyshevRecordMetadata(data []float64) (init, intLen float64, rsize, n int, coeffData []float64) {
	nWords := len(data)
	return data[nWords-4], data[nWords-3], int(data[nWords-2]), int(data[nWords-1]), data[:nWords-4]
}
