package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"minirel/db"
	"minirel/record"
)

// A small driver timing the access paths of the storage core: heap
// append with index maintenance, index point lookup, ordered leaf-chain
// scan, and full heap scan.
func main() {
	numRows := flag.Int("rows", 100000, "rows to insert")
	poolSize := flag.Int("pool", 1024, "buffer pool frames")
	policy := flag.String("policy", db.PolicyLRU, "replacement policy (lru|clock)")
	flag.Parse()

	dir, err := os.MkdirTemp("", "minirel-bench-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := db.DefaultConfig(filepath.Join(dir, "bench.db"))
	cfg.PoolSize = *poolSize
	cfg.Policy = *policy

	database, err := db.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	schema := record.NewSchema([]*record.Column{
		record.NewColumn("id", record.TypeInt, 0, false, true),
		record.NewCharColumn("payload", 32, 1, false, false),
	}, []uint32{0})
	table, err := database.Catalog.CreateTable("bench", schema)
	if err != nil {
		log.Fatal(err)
	}
	idx, err := database.Catalog.GetIndex("bench", "bench__primary")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("rows=%d pool=%d policy=%s\n", *numRows, *poolSize, *policy)
	fmt.Println(strings.Repeat("-", 48))

	makeRow := func(i int32) *record.Row {
		return record.NewRow([]*record.Field{
			record.NewIntField(i),
			record.NewCharField(fmt.Sprintf("payload-%08d", i)),
		})
	}

	start := time.Now()
	for i := 0; i < *numRows; i++ {
		row := makeRow(int32(i))
		if err := table.Heap.InsertRow(row); err != nil {
			log.Fatal(err)
		}
		if err := idx.Tree.Insert(idx.EncodeKey(row), row.RowID); err != nil {
			log.Fatal(err)
		}
	}
	report("insert (heap+index)", *numRows, time.Since(start))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start = time.Now()
	for i := 0; i < *numRows; i++ {
		probe := makeRow(int32(rng.Intn(*numRows)))
		rid, err := idx.Tree.GetValue(idx.EncodeKey(probe))
		if err != nil {
			log.Fatal(err)
		}
		if _, err := table.Heap.GetRow(rid); err != nil {
			log.Fatal(err)
		}
	}
	report("point lookup (index)", *numRows, time.Since(start))

	start = time.Now()
	it, err := idx.Tree.Begin()
	if err != nil {
		log.Fatal(err)
	}
	count := 0
	for it.Next() {
		count++
	}
	it.Close()
	if count != *numRows {
		log.Fatalf("scan visited %d of %d rows", count, *numRows)
	}
	report("ordered scan (leaf chain)", count, time.Since(start))

	start = time.Now()
	heapCount := 0
	hit := table.Heap.Begin()
	for hit.Next() {
		heapCount++
	}
	if err := hit.Error(); err != nil {
		log.Fatal(err)
	}
	report("full scan (heap)", heapCount, time.Since(start))
}

func report(name string, ops int, elapsed time.Duration) {
	fmt.Printf("%-28s %8.2fms  %10.0f ops/sec\n",
		name, float64(elapsed.Microseconds())/1000, float64(ops)/elapsed.Seconds())
}
