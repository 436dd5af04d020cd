// Command benchmark measures publish/subscribe throughput and latency
// between a real RTPS writer and reader talking over loopback UDP, the way
// the teacher's cmd/benchmark measured SaveEvent throughput against Badger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opendds-go/ddscore/pkg/ddstime"
	"github.com/opendds-go/ddscore/pkg/eventloop"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/qos"
	"github.com/opendds-go/ddscore/pkg/rtps"
	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/transport"
	"github.com/opendds-go/ddscore/pkg/wire"
)

const benchmarkTopic = "benchmark.samples"

type BenchmarkConfig struct {
	NumSamples        int
	ConcurrentWorkers int
	TestDuration      time.Duration
	BurstPattern      bool
	Reliable          bool
	ReportInterval    time.Duration
}

type BenchmarkResult struct {
	TestName          string
	Duration          time.Duration
	TotalSamples      int
	SamplesPerSecond  float64
	AvgLatency        time.Duration
	P90Latency        time.Duration
	P95Latency        time.Duration
	P99Latency        time.Duration
	Bottom10Avg       time.Duration
	SuccessRate       float64
	ConcurrentWorkers int
	MemoryUsed        uint64
	Errors            []string
}

func main() {
	config := parseFlags()

	fmt.Printf("Starting DDS pub/sub benchmark\n")
	fmt.Printf(
		"Samples: %d, Workers: %d, Duration: %v, Reliable: %v\n",
		config.NumSamples, config.ConcurrentWorkers, config.TestDuration, config.Reliable,
	)

	b, err := NewBenchmark(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	b.RunSuite()
	b.GenerateReport()
}

func parseFlags() *BenchmarkConfig {
	config := &BenchmarkConfig{}

	flag.IntVar(&config.NumSamples, "samples", 100000, "Number of samples to publish")
	flag.IntVar(
		&config.ConcurrentWorkers, "workers", runtime.NumCPU(),
		"Number of concurrent publishing workers",
	)
	flag.DurationVar(&config.TestDuration, "duration", 10*time.Second, "Test duration for the burst test")
	flag.BoolVar(&config.BurstPattern, "burst", true, "Enable burst pattern testing")
	flag.BoolVar(&config.Reliable, "reliable", false, "Use reliable instead of best-effort delivery")
	flag.DurationVar(&config.ReportInterval, "report-interval", 2*time.Second, "Progress report interval")

	flag.Parse()
	return config
}

// Benchmark wires one RTPS writer and one RTPS reader over real loopback
// UDP sockets, each driven by its own eventloop.Loop, the way cmd/participant
// wires a whole participant but scoped to a single matched endpoint pair.
type Benchmark struct {
	config *BenchmarkConfig

	writer       *rtps.Writer
	writerLoop   *eventloop.Loop
	readerLoop   *eventloop.Loop
	writerCancel func()
	readerCancel func()

	latencies chan time.Duration
	results   []*BenchmarkResult
	mu        sync.RWMutex
}

// endpointDirectory satisfies eventloop.Directory and eventloop.HeartbeatSource
// for a single matched reader or writer, the way loop_test.go's fakeDirectory
// stubs a directory for tests.
type endpointDirectory struct {
	readerID guid.EntityId
	reader   *rtps.Reader
	writerID guid.EntityId
	writer   *rtps.Writer
}

func (d *endpointDirectory) ReaderByEntityID(id guid.EntityId) *rtps.Reader {
	if d.reader != nil && id == d.readerID {
		return d.reader
	}
	return nil
}

func (d *endpointDirectory) WriterByEntityID(id guid.EntityId) *rtps.Writer {
	if d.writer != nil && id == d.writerID {
		return d.writer
	}
	return nil
}

func (d *endpointDirectory) Writers() []*rtps.Writer {
	if d.writer == nil {
		return nil
	}
	return []*rtps.Writer{d.writer}
}

// latencySubscriber reports the receive/source timestamp gap of every
// delivered change onto a channel, which is how RunPeakThroughputTest and
// RunBurstPatternTest collect per-sample latency without the writer and
// reader sharing any other state.
type latencySubscriber struct {
	id string
	ch chan<- time.Duration
}

func (s *latencySubscriber) Type() string { return s.id }

func (s *latencySubscriber) Deliver(c topiccache.Change) {
	latency := time.Duration(c.ReceiveTimestamp.UnixNano() - c.SourceTimestamp.UnixNano())
	select {
	case s.ch <- latency:
	default: // reader outpacing the collector; drop rather than block delivery
	}
}

func NewBenchmark(config *BenchmarkConfig) (*Benchmark, error) {
	reliability := qos.BestEffort
	if config.Reliable {
		reliability = qos.Reliable
	}

	writerPrefix := guid.NewPrefix()
	readerPrefix := guid.NewPrefix()

	writerSock, err := transport.NewUnicastSocket(writerPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("writer socket: %w", err)
	}
	readerSock, err := transport.NewUnicastSocket(readerPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("reader socket: %w", err)
	}

	tc := topiccache.New()
	fanout := localfanout.New()
	tc.AddTopic(benchmarkTopic, topiccache.NoKey, "BenchmarkSample", config.NumSamples)

	writerEntity := guid.NewEntityId([3]byte{1, 0, 0}, guid.KindWriterNoKey)
	readerEntity := guid.NewEntityId([3]byte{2, 0, 0}, guid.KindReaderNoKey)

	writerGUID := guid.New(writerPrefix, writerEntity)
	readerGUID := guid.New(readerPrefix, readerEntity)

	writer := rtps.NewWriter(writerGUID, benchmarkTopic, qos.Default(), writerSock, tc, fanout)
	reader := rtps.NewReader(readerGUID, benchmarkTopic, reliability, readerSock, tc, fanout)

	writer.AddReaderProxy(rtps.NewReaderProxy(readerGUID, []wire.Locator{readerSock.Locator()}, reliability))
	reader.AddWriterProxy(rtps.NewWriterProxy(writerGUID, []wire.Locator{writerSock.Locator()}, reliability))

	latencies := make(chan time.Duration, 4096)
	fanout.Subscribe(benchmarkTopic, &latencySubscriber{id: readerGUID.String(), ch: latencies})

	writerLoop := eventloop.New(eventloop.DefaultHeartbeatTick, writerSock)
	writerLoop.AddDirectory(&endpointDirectory{writerID: writerEntity, writer: writer})
	writerLoop.AddHeartbeatSource(&endpointDirectory{writerID: writerEntity, writer: writer})

	readerLoop := eventloop.New(eventloop.DefaultHeartbeatTick, readerSock)
	readerLoop.AddDirectory(&endpointDirectory{readerID: readerEntity, reader: reader})

	wCtx, wCancel := context.WithCancel(context.Background())
	rCtx, rCancel := context.WithCancel(context.Background())
	go writerLoop.Run(wCtx)
	go readerLoop.Run(rCtx)

	return &Benchmark{
		config:       config,
		writer:       writer,
		writerLoop:   writerLoop,
		readerLoop:   readerLoop,
		writerCancel: wCancel,
		readerCancel: rCancel,
		latencies:    latencies,
	}, nil
}

func (b *Benchmark) Close() {
	b.writerCancel()
	b.readerCancel()
}

// RunSuite mirrors the teacher's two-round pause-between-tests shape, minus
// the round repetition (one pass is enough to characterize loopback RTPS).
func (b *Benchmark) RunSuite() {
	b.RunPeakThroughputTest()
	time.Sleep(1 * time.Second)
	if b.config.BurstPattern {
		b.RunBurstPatternTest()
	}
}

func (b *Benchmark) RunPeakThroughputTest() {
	fmt.Println("\n=== Peak Throughput Test ===")

	start := time.Now()
	var wg sync.WaitGroup
	var totalSamples int64
	var errors []error
	var mu sync.Mutex

	perWorker := b.config.NumSamples / b.config.ConcurrentWorkers

	progressDone := make(chan struct{})
	go b.reportProgress(&totalSamples, progressDone)

	for i := 0; i < b.config.ConcurrentWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				err := b.writer.Write([]byte("benchmark payload"), ddstime.Now())
				mu.Lock()
				if err != nil {
					errors = append(errors, err)
				} else {
					atomic.AddInt64(&totalSamples, 1)
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	close(progressDone)
	duration := time.Since(start)
	latencies := b.drainLatencies(duration)

	result := b.buildResult("Peak Throughput", duration, int(totalSamples), errors, latencies)
	result.SuccessRate = float64(totalSamples) / float64(perWorker*b.config.ConcurrentWorkers) * 100

	b.record(result)
	b.printResult(result)
}

func (b *Benchmark) RunBurstPatternTest() {
	fmt.Println("\n=== Burst Pattern Test ===")

	start := time.Now()
	var totalSamples int64
	var errors []error
	var mu sync.Mutex

	burstSize := b.config.NumSamples / 10
	if burstSize < 1 {
		burstSize = 1
	}
	quietPeriod := 200 * time.Millisecond
	burstPeriod := 50 * time.Millisecond

	sent := 0
	for sent < b.config.NumSamples && time.Since(start) < b.config.TestDuration {
		burstStart := time.Now()
		var wg sync.WaitGroup
		for i := 0; i < burstSize && sent < b.config.NumSamples; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := b.writer.Write([]byte("burst payload"), ddstime.Now())
				mu.Lock()
				if err != nil {
					errors = append(errors, err)
				} else {
					atomic.AddInt64(&totalSamples, 1)
				}
				mu.Unlock()
			}()
			sent++
			time.Sleep(burstPeriod / time.Duration(burstSize))
		}
		wg.Wait()
		fmt.Printf("Burst completed: %d samples in %v\n", burstSize, time.Since(burstStart))
		time.Sleep(quietPeriod)
	}

	duration := time.Since(start)
	latencies := b.drainLatencies(duration)

	result := b.buildResult("Burst Pattern", duration, int(totalSamples), errors, latencies)
	result.SuccessRate = float64(totalSamples) / float64(sent) * 100

	b.record(result)
	b.printResult(result)
}

func (b *Benchmark) reportProgress(total *int64, done <-chan struct{}) {
	ticker := time.NewTicker(b.config.ReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			fmt.Printf("progress: %d samples sent\n", atomic.LoadInt64(total))
		}
	}
}

// drainLatencies gives the reader loop a grace window to finish delivering
// in-flight datagrams before collecting whatever arrived on the channel.
func (b *Benchmark) drainLatencies(testDuration time.Duration) []time.Duration {
	time.Sleep(50 * time.Millisecond)
	var out []time.Duration
	for {
		select {
		case l := <-b.latencies:
			out = append(out, l)
		default:
			return out
		}
	}
}

func (b *Benchmark) buildResult(name string, duration time.Duration, total int, errs []error, latencies []time.Duration) *BenchmarkResult {
	result := &BenchmarkResult{
		TestName:          name,
		Duration:          duration,
		TotalSamples:      total,
		SamplesPerSecond:  float64(total) / duration.Seconds(),
		ConcurrentWorkers: b.config.ConcurrentWorkers,
		MemoryUsed:        getMemUsage(),
	}
	if len(latencies) > 0 {
		result.AvgLatency = calculateAvgLatency(latencies)
		result.P90Latency = calculatePercentileLatency(latencies, 0.90)
		result.P95Latency = calculatePercentileLatency(latencies, 0.95)
		result.P99Latency = calculatePercentileLatency(latencies, 0.99)
		result.Bottom10Avg = calculateBottom10Avg(latencies)
	}
	for _, err := range errs {
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

func (b *Benchmark) record(result *BenchmarkResult) {
	b.mu.Lock()
	b.results = append(b.results, result)
	b.mu.Unlock()
}

func (b *Benchmark) printResult(result *BenchmarkResult) {
	fmt.Printf("Samples written: %d (%.1f%% of attempted)\n", result.TotalSamples, result.SuccessRate)
	fmt.Printf("Duration: %v\n", result.Duration)
	fmt.Printf("Samples/sec: %.2f\n", result.SamplesPerSecond)
	fmt.Printf("Avg latency: %v\n", result.AvgLatency)
	fmt.Printf("P90 latency: %v\n", result.P90Latency)
	fmt.Printf("P95 latency: %v\n", result.P95Latency)
	fmt.Printf("P99 latency: %v\n", result.P99Latency)
	fmt.Printf("Bottom 10%% Avg latency: %v\n", result.Bottom10Avg)
}

func (b *Benchmark) GenerateReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BENCHMARK REPORT")
	fmt.Println(strings.Repeat("=", 80))

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, result := range b.results {
		fmt.Printf("\nTest: %s\n", result.TestName)
		fmt.Printf("Total Samples: %d\n", result.TotalSamples)
		fmt.Printf("Samples/sec: %.2f\n", result.SamplesPerSecond)
		fmt.Printf("Success Rate: %.1f%%\n", result.SuccessRate)
		fmt.Printf("Memory Used: %d MB\n", result.MemoryUsed/(1024*1024))
		fmt.Printf("Avg Latency: %v\n", result.AvgLatency)
		fmt.Printf("P99 Latency: %v\n", result.P99Latency)
		if len(result.Errors) > 0 {
			fmt.Printf("Errors (%d), first 5 shown:\n", len(result.Errors))
			for i, err := range result.Errors {
				if i >= 5 {
					break
				}
				fmt.Printf("  - %s\n", err)
			}
		}
		fmt.Println(strings.Repeat("-", 40))
	}
}

// Helper functions, adapted directly from the teacher's latency math.

func calculateAvgLatency(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	return total / time.Duration(len(latencies))
}

func calculatePercentileLatency(latencies []time.Duration, percentile float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * percentile)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func calculateBottom10Avg(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	start := int(float64(len(sorted)) * 0.9)
	if start >= len(sorted) {
		start = len(sorted) - 1
	}
	var total time.Duration
	for i := start; i < len(sorted); i++ {
		total += sorted[i]
	}
	count := len(sorted) - start
	if count <= 0 {
		return 0
	}
	return total / time.Duration(count)
}

func getMemUsage() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}
