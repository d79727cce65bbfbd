package logger

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type counter struct {
	count int64
	bytes int64
}

var (
	rowsRead      sync.Map // kind -> *counter
	partsWritten  sync.Map // kind -> *counter
	warnsByComp   sync.Map // component -> *counter
	errorsByComp  sync.Map // component -> *counter
	s3Uploads     int64
	s3Bytes       int64
	kafkaMessages int64
)

func add(m *sync.Map, key string, n, size int64) {
	v, _ := m.LoadOrStore(key, &counter{})
	c := v.(*counter)
	atomic.AddInt64(&c.count, n)
	atomic.AddInt64(&c.bytes, size)
}

func recordWarn(component string)  { add(&warnsByComp, component, 1, 0) }
func recordError(component string) { add(&errorsByComp, component, 1, 0) }

// AddRowsRead counts input rows loaded for a kind. Every row yields
// exactly one event.
func AddRowsRead(kind string, n int) {
	add(&rowsRead, kind, int64(n), 0)
}

// AddPartWritten counts one parquet part of size bytes.
func AddPartWritten(kind string, size int64) {
	add(&partsWritten, kind, 1, size)
}

func IncrementS3Upload(size int64) {
	atomic.AddInt64(&s3Uploads, 1)
	atomic.AddInt64(&s3Bytes, size)
}

func AddKafkaMessages(n int) {
	atomic.AddInt64(&kafkaMessages, int64(n))
}

// Report is a point-in-time copy of the counters.
type Report struct {
	RowsRead      map[string]int64
	PartsWritten  map[string]int64
	PartBytes     map[string]int64
	Warnings      map[string]int64
	Errors        map[string]int64
	S3Uploads     int64
	S3Bytes       int64
	KafkaMessages int64
}

func counts(m *sync.Map) (map[string]int64, map[string]int64) {
	n := map[string]int64{}
	b := map[string]int64{}
	m.Range(func(k, v any) bool {
		c := v.(*counter)
		n[k.(string)] = atomic.LoadInt64(&c.count)
		b[k.(string)] = atomic.LoadInt64(&c.bytes)
		return true
	})
	return n, b
}

// Snapshot returns the current counter values.
func Snapshot() Report {
	r := Report{
		S3Uploads:     atomic.LoadInt64(&s3Uploads),
		S3Bytes:       atomic.LoadInt64(&s3Bytes),
		KafkaMessages: atomic.LoadInt64(&kafkaMessages),
	}
	r.RowsRead, _ = counts(&rowsRead)
	r.PartsWritten, r.PartBytes = counts(&partsWritten)
	r.Warnings, _ = counts(&warnsByComp)
	r.Errors, _ = counts(&errorsByComp)
	return r
}

func sum(m map[string]int64) int64 {
	var total int64
	for _, v := range m {
		total += v
	}
	return total
}

// StartReport logs system and loader statistics every interval until ctx
// is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	var memUsed uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsed = vm.Used
	}

	r := Snapshot()
	kinds := make([]string, 0, len(r.RowsRead))
	for k := range r.RowsRead {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	log.WithComponent("report").WithFields(Fields{
		"rows_read":      r.RowsRead,
		"parts_written":  r.PartsWritten,
		"part_bytes":     r.PartBytes,
		"warnings":       r.Warnings,
		"errors":         r.Errors,
		"s3_uploads":     r.S3Uploads,
		"s3_bytes":       r.S3Bytes,
		"kafka_messages": r.KafkaMessages,
		"kinds":          kinds,
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      int64(memUsed) / 1024 / 1024,
	}).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memUsed) / 1024 / 1024)},
		countDatum("RowsRead", sum(r.RowsRead)),
		countDatum("PartsWritten", sum(r.PartsWritten)),
		countDatum("S3Uploads", r.S3Uploads),
		countDatum("KafkaMessages", r.KafkaMessages),
		countDatum("LoadErrors", sum(r.Errors)),
		countDatum("Warnings", sum(r.Warnings)),
	}
	for _, kind := range kinds {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String("RowsRead"),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{{Name: aws.String("Kind"), Value: aws.String(kind)}},
			Value:      aws.Float64(float64(r.RowsRead[kind])),
		})
	}

	publishMetrics(ctx, data)
}
