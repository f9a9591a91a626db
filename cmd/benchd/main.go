// Package main implements benchd, a hashrate benchmark. It runs the mining
// workers against a fixed blob with an unreachable target and reports raw
// throughput per algorithm.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/bardlex/gomc/internal/algo"
	"github.com/bardlex/gomc/internal/mining"
	"github.com/bardlex/gomc/pkg/log"
)

const benchBlobSize = 76

func main() {
	algoName := flag.String("algo", "randomx", "algorithm to benchmark (randomx, cnv7, cnr)")
	threads := flag.Int("threads", runtime.NumCPU(), "worker threads")
	duration := flag.Duration("duration", 10*time.Second, "benchmark duration")
	batchSize := flag.Uint64("batch", 1000, "nonce batch size per worker")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger := log.New("benchd", "dev", *logLevel, "text")

	if err := run(*algoName, *threads, *duration, *batchSize, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
		os.Exit(1)
	}
}

func run(algoName string, threads int, duration time.Duration, batchSize uint64,
	logger *log.Logger) error {

	kind, err := algo.ParseKind(algoName)
	if err != nil {
		return err
	}

	algo.RegisterDevBackends()
	algorithm, err := algo.New(kind, algo.Options{})
	if err != nil {
		return err
	}

	// Shares never pass the all-zero target; the channel only needs to exist.
	shares := make(chan mining.Share, 1)
	scheduler, err := mining.NewScheduler(shares, batchSize, logger)
	if err != nil {
		return err
	}

	var total uint64
	counted := make(chan uint64, 1024)
	scheduler.SetHashReporter(func(n uint64) { counted <- n })
	collectorDone := make(chan struct{})
	go func() {
		for n := range counted {
			total += n
		}
		close(collectorDone)
	}()

	blob := make([]byte, benchBlobSize)
	for i := range blob {
		blob[i] = byte(i)
	}
	scheduler.UpdateJob(mining.Job{
		ID:        "bench",
		Blob:      blob,
		Target:    make([]byte, 32),
		Algorithm: kind,
	})

	fmt.Printf("Benchmarking %s with %d threads for %s...\n", kind, threads, duration)

	start := time.Now()
	if err := scheduler.StartMining(algorithm, threads); err != nil {
		return err
	}

	time.Sleep(duration)
	scheduler.Stop()
	scheduler.Wait()
	elapsed := time.Since(start)

	close(counted)
	<-collectorDone

	rate := float64(total) / elapsed.Seconds()
	fmt.Printf("Total hashes: %d\n", total)
	fmt.Printf("Elapsed:      %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Hashrate:     %.2f H/s (%.2f H/s per thread)\n",
		rate, rate/float64(threads))
	return nil
}
