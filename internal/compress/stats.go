package compress

import (
	"sync/atomic"
	"time"
)

// Stats — счетчики решений фильтра за время жизни процесса.
// Инкременты атомарные, блокировок нет; согласованность между
// отдельными счетчиками не гарантируется и не требуется.
type Stats struct {
	enabled bool

	requestsDecompressed    atomic.Int64
	requestsNotDecompressed atomic.Int64
	responsesCompressed     atomic.Int64
	responsesNotCompressed  atomic.Int64

	responseBytesIn  atomic.Int64 // байты сжатых ответов до сжатия
	responseBytesOut atomic.Int64 // байты сжатых ответов после сжатия
	handlingTimeNS   atomic.Int64
}

// Snapshot — моментальный срез счетчиков.
type Snapshot struct {
	RequestsDecompressed    int64         `json:"requests_decompressed"`
	RequestsNotDecompressed int64         `json:"requests_not_decompressed"`
	ResponsesCompressed     int64         `json:"responses_compressed"`
	ResponsesNotCompressed  int64         `json:"responses_not_compressed"`
	ResponseBytesIn         int64         `json:"response_bytes_in"`
	ResponseBytesOut        int64         `json:"response_bytes_out"`
	CompressionRatio        float64       `json:"compression_ratio"`
	HandlingTime            time.Duration `json:"handling_time_ns"`
	TakenAt                 time.Time     `json:"taken_at"`
}

func newStats(enabled bool) *Stats {
	return &Stats{enabled: enabled}
}

func (s *Stats) addRequestDecompressed() {
	if s.enabled {
		s.requestsDecompressed.Add(1)
	}
}

func (s *Stats) addRequestNotDecompressed() {
	if s.enabled {
		s.requestsNotDecompressed.Add(1)
	}
}

func (s *Stats) addResponseCompressed(bytesIn int64, bytesOut int64) {
	if s.enabled {
		s.responsesCompressed.Add(1)
		s.responseBytesIn.Add(bytesIn)
		s.responseBytesOut.Add(bytesOut)
	}
}

func (s *Stats) addResponseNotCompressed() {
	if s.enabled {
		s.responsesNotCompressed.Add(1)
	}
}

func (s *Stats) addHandlingTime(d time.Duration) {
	if s.enabled {
		s.handlingTimeNS.Add(int64(d))
	}
}

// Snapshot возвращает срез значений на текущий момент.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		RequestsDecompressed:    s.requestsDecompressed.Load(),
		RequestsNotDecompressed: s.requestsNotDecompressed.Load(),
		ResponsesCompressed:     s.responsesCompressed.Load(),
		ResponsesNotCompressed:  s.responsesNotCompressed.Load(),
		ResponseBytesIn:         s.responseBytesIn.Load(),
		ResponseBytesOut:        s.responseBytesOut.Load(),
		HandlingTime:            time.Duration(s.handlingTimeNS.Load()),
		TakenAt:                 time.Now(),
	}
	if snap.ResponseBytesIn > 0 {
		snap.CompressionRatio = float64(snap.ResponseBytesOut) / float64(snap.ResponseBytesIn)
	}
	return snap
}
