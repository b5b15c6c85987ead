//
// Copyright (C) 2022-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package dispatch runs mapping workers over chunks of fragments.
package dispatch

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/fatih/set.v0"

	"git.sr.ht/~vejnar/Pesca/lib/fault"
	"git.sr.ht/~vejnar/Pesca/lib/mapping"
	"git.sr.ht/~vejnar/Pesca/lib/output"
	"git.sr.ht/~vejnar/Pesca/lib/seqio"
)

const (
	DefaultChunkSize = 1000
	jobsPerWorker    = 4
)

// Mapper maps one fragment. Each worker owns one Mapper.
type Mapper interface {
	Map(f *seqio.Fragment, rec *mapping.Record)
}

type Options struct {
	Workers   int
	ChunkSize int

	// Log receives progress messages
	Log   logrus.FieldLogger
	Start time.Time

	// ProgressInterval between progress messages, one minute by default
	ProgressInterval time.Duration
}

func DefaultOptions() Options {
	return Options{Workers: 1, ChunkSize: DefaultChunkSize}
}

func (o *Options) Check() error {
	if o.Workers < 1 {
		return fault.Config("number of workers must be at least 1, got %d", o.Workers)
	}
	if o.ChunkSize < 1 {
		return fault.Config("chunk size must be at least 1, got %d", o.ChunkSize)
	}
	if o.Log == nil {
		o.Log = discardLogger()
	}
	if o.Start.IsZero() {
		o.Start = time.Now()
	}
	if o.ProgressInterval == 0 {
		o.ProgressInterval = time.Minute
	}
	return nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// Stats counts the records written by a run.
type Stats struct {
	Fragments uint64
	Mapped    uint64
	Unmapped  [mapping.NumReasons]uint64
	Mates     map[mapping.MateType]uint64
	Barcodes  int
	Elapsed   time.Duration
}

func (s *Stats) add(recs []mapping.Record) {
	for i := range recs {
		rec := &recs[i]
		s.Fragments++
		if rec.Mapped() {
			s.Mapped++
			s.Mates[rec.Mate]++
		} else {
			s.Unmapped[rec.Reason]++
		}
	}
}

// job pairs a chunk with the batch receiving its records.
type job struct {
	seq   uint64
	chunk *seqio.Chunk
	batch *output.Batch
}

// Run maps every fragment of src and writes one record per fragment to
// writers, in input order. Mappers are created with newMapper before reading starts.
func Run(ctx context.Context, newMapper func() (Mapper, error), src seqio.FragmentReader, writers []output.BatchWriter, opt Options) (*Stats, error) {
	if err := opt.Check(); err != nil {
		return nil, err
	}
	mappers := make([]Mapper, opt.Workers)
	for i := range mappers {
		m, err := newMapper()
		if err != nil {
			return nil, err
		}
		mappers[i] = m
	}
	stats := &Stats{Mates: make(map[mapping.MateType]uint64)}
	barcodes := set.New(set.ThreadSafe)

	g, gctx := errgroup.WithContext(ctx)

	// Init job pool
	pool := make(chan *job, opt.Workers*jobsPerWorker)
	for i := 0; i < cap(pool); i++ {
		pool <- &job{chunk: seqio.NewChunk(opt.ChunkSize), batch: output.NewBatch(opt.ChunkSize)}
	}
	chChunk := make(chan *job, cap(pool))
	chFinal := make(chan *job, cap(pool))

	// Reader
	g.Go(func() error {
		defer close(chChunk)
		var seq uint64
		for {
			var j *job
			select {
			case <-gctx.Done():
				return gctx.Err()
			case j = <-pool:
			}
			if err := src.Fill(j.chunk); err == io.EOF {
				return nil
			} else if err != nil {
				return err
			}
			j.seq = seq
			seq++
			select {
			case <-gctx.Done():
				return gctx.Err()
			case chChunk <- j:
			}
		}
	})

	// Workers
	var wg sync.WaitGroup
	for i, m := range mappers {
		i, m := i, m
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return work(gctx, i, m, chChunk, chFinal, barcodes)
		})
	}
	go func() {
		wg.Wait()
		close(chFinal)
	}()

	// Merge in chunk order
	err := merge(gctx, chFinal, pool, writers, stats, opt)
	if err != nil {
		// Unblock the other stages
		g.Go(func() error { return err })
		for range chFinal {
		}
	}
	if gerr := g.Wait(); gerr != nil {
		return nil, gerr
	}
	if err != nil {
		return nil, err
	}
	stats.Barcodes = barcodes.Size()
	stats.Elapsed = time.Since(opt.Start)
	opt.Log.Infof("%.1fmin - Done %s fragments", stats.Elapsed.Minutes(), humanize.Comma(int64(stats.Fragments)))
	return stats, nil
}

// work maps the jobs of chChunk until it is closed or ctx is done.
func work(ctx context.Context, worker int, m Mapper, chChunk <-chan *job, chFinal chan<- *job, barcodes set.Interface) error {
	for {
		var j *job
		select {
		case <-ctx.Done():
			return ctx.Err()
		case jj, ok := <-chChunk:
			if !ok {
				return nil
			}
			j = jj
		}
		if err := mapChunk(worker, m, j, barcodes); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chFinal <- j:
		}
	}
}

// mapChunk maps the fragments of j. A panic becomes a FatalError located by worker and chunk.
func mapChunk(worker int, m Mapper, j *job, barcodes set.Interface) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.New(fault.KindFatal, "worker %d, chunk %d (%s): %v", worker, j.chunk.ID, j.chunk.Source, r)
		}
	}()
	j.batch.Reset()
	j.batch.ChunkID = j.chunk.ID
	for i := 0; i < j.chunk.Length; i++ {
		rec := j.batch.Next()
		m.Map(&j.chunk.Fragments[i], rec)
		if len(rec.Barcode) > 0 {
			barcodes.Add(string(rec.Barcode))
		}
	}
	return nil
}

func merge(ctx context.Context, chFinal <-chan *job, pool chan<- *job, writers []output.BatchWriter, stats *Stats, opt Options) error {
	pending := make(map[uint64]*job)
	var next uint64
	timeLog := time.Now()
	for j := range chFinal {
		pending[j.seq] = j
		for {
			j, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			for _, w := range writers {
				if err := w.WriteBatch(j.batch); err != nil {
					return fault.Wrap(fault.KindFatal, err, "writing chunk %d (%s)", j.chunk.ID, j.chunk.Source)
				}
			}
			stats.add(j.batch.Filled())
			next++
			pool <- j
		}
		if timeNow := time.Now(); timeNow.Sub(timeLog) > opt.ProgressInterval {
			elapsed := timeNow.Sub(opt.Start)
			opt.Log.Infof("%.1fmin - %s fragments - %.2f Mf/hr", elapsed.Minutes(), humanize.Comma(int64(stats.Fragments)), (float64(stats.Fragments)/elapsed.Hours())/1000000.)
			timeLog = timeNow
		}
	}
	if ctx.Err() == nil && len(pending) > 0 {
		return fault.New(fault.KindFatal, "%d chunk(s) never written", len(pending))
	}
	return nil
}
