// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Command benchring drives a log ring through a configurable insert/pop
// workload and reports latency percentiles, the same shape as the teacher
// WAL's bench/ package but built as a standalone CLI rather than a _test.go
// so it can be pointed at a real directory instead of a temp one. With
// -compare-bbolt it runs an equivalent head/tail read-modify-write workload
// against a bbolt bucket as a baseline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	gokitlog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.etcd.io/bbolt"
	"gonum.org/v1/gonum/stat"

	logring "github.com/brendanbruner/logring"
)

func main() {
	var (
		dir           = flag.String("dir", "", "directory to run the benchmark in (default: a fresh temp dir)")
		capacity      = flag.Uint("capacity", 256, "ring max_capacity")
		iterations    = flag.Int("n", 50000, "number of insert+pop cycles to run")
		entrySize     = flag.Int("entry-size", 64, "bytes written per entry")
		compareBbolt  = flag.Bool("compare-bbolt", false, "also run an equivalent workload against a bbolt bucket")
		controlName   = flag.String("control", "BENCHRING.CTL", "control record filename")
	)
	flag.Parse()

	workDir := *dir
	if workDir == "" {
		d, err := os.MkdirTemp("", "benchring-*")
		if err != nil {
			log.Fatalf("benchring: %v", err)
		}
		defer os.RemoveAll(d)
		workDir = d
	}

	reg := prometheus.NewRegistry()
	logger := gokitlog.NewLogfmtLogger(os.Stderr)

	fs := logring.NewOSFilesystem(workDir)
	r, err := logring.Open(*controlName, 'B', *capacity,
		logring.WithFilesystem(fs),
		logring.WithLogger(logger),
		logring.WithRegisterer(reg),
	)
	if err != nil {
		log.Fatalf("benchring: open: %v", err)
	}

	payload := make([]byte, *entrySize)
	for i := range payload {
		payload[i] = byte(i)
	}

	ringHist := hdrhistogram.New(1, 10_000_000, 3)
	samples := make([]float64, 0, *iterations)

	for i := 0; i < *iterations; i++ {
		start := time.Now()

		tmp := fmt.Sprintf("%s.staged.%d", *controlName, i)
		f, err := fs.Open(tmp, logring.OpenReadWriteCreate)
		if err != nil {
			log.Fatalf("benchring: stage: %v", err)
		}
		if _, err := f.Write(payload); err != nil {
			log.Fatalf("benchring: stage write: %v", err)
		}
		f.Close()

		if st := r.Insert(tmp); st != logring.OK {
			log.Fatalf("benchring: insert: %v", st)
		}
		if _, st := r.Pop(); st != logring.OK && st != logring.Empty {
			log.Fatalf("benchring: pop: %v", st)
		}

		elapsed := time.Since(start)
		ringHist.RecordValue(elapsed.Microseconds())
		samples = append(samples, float64(elapsed.Microseconds()))
	}

	mean, stddev := stat.MeanStdDev(samples, nil)
	fmt.Printf("logring: n=%d mean=%.1fus stddev=%.1fus p50=%dus p99=%dus p999=%dus\n",
		*iterations, mean, stddev,
		ringHist.ValueAtQuantile(50),
		ringHist.ValueAtQuantile(99),
		ringHist.ValueAtQuantile(99.9),
	)

	if *compareBbolt {
		runBboltComparison(workDir, *iterations, payload)
	}
}

// runBboltComparison performs an equivalent head/tail read-modify-write
// cycle against a bbolt bucket: put a value under an incrementing head key,
// delete the oldest (tail) key, commit. This is not a ring - bbolt has no
// notion of one - it's a baseline for how a general-purpose embedded KV
// store compares against the purpose-built file-per-entry design on the
// same workload shape.
func runBboltComparison(dir string, iterations int, payload []byte) {
	dbPath := dir + "/benchring-compare.bolt"
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		log.Fatalf("benchring: bbolt open: %v", err)
	}
	defer db.Close()

	bucketName := []byte("entries")
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		log.Fatalf("benchring: bbolt bucket: %v", err)
	}

	hist := hdrhistogram.New(1, 10_000_000, 3)
	samples := make([]float64, 0, iterations)

	for i := 0; i < iterations; i++ {
		start := time.Now()
		key := []byte(fmt.Sprintf("%016d", i))

		err := db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketName)
			if err := b.Put(key, payload); err != nil {
				return err
			}
			c := b.Cursor()
			oldestKey, _ := c.First()
			if oldestKey != nil {
				return b.Delete(oldestKey)
			}
			return nil
		})
		if err != nil {
			log.Fatalf("benchring: bbolt update: %v", err)
		}

		elapsed := time.Since(start)
		hist.RecordValue(elapsed.Microseconds())
		samples = append(samples, float64(elapsed.Microseconds()))
	}

	mean, stddev := stat.MeanStdDev(samples, nil)
	fmt.Printf("bbolt:   n=%d mean=%.1fus stddev=%.1fus p50=%dus p99=%dus p999=%dus\n",
		iterations, mean, stddev,
		hist.ValueAtQuantile(50),
		hist.ValueAtQuantile(99),
		hist.ValueAtQuantile(99.9),
	)
}
