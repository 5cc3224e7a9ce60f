package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/bibclean/pkg/marc"
)

// Source yields records until io.EOF. *marc.Reader satisfies it.
type Source interface {
	Next() (*marc.Record, error)
}

// Sink receives reports in input order, skipped records included.
type Sink interface {
	Put(rep *RecordReport) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rep *RecordReport) error

func (f SinkFunc) Put(rep *RecordReport) error { return f(rep) }

// Summary counts the outcome of a run.
type Summary struct {
	Records            int `json:"records"`
	Processed          int `json:"processed"`
	Skipped            int `json:"skipped"`
	RepairedFields     int `json:"repaired_fields"`
	Anomalies          int `json:"anomalies"`
	UnrepairableFields int `json:"unrepairable_fields"`
	RepairErrors       int `json:"repair_errors"`
	LinkageWarnings    int `json:"linkage_warnings"`
	LanguageWarnings   int `json:"language_warnings"`
}

// Add folds one report into the counters.
func (s *Summary) Add(rep *RecordReport) {
	s.Records++
	if rep.Skipped() {
		s.Skipped++
		return
	}
	s.Processed++
	s.RepairedFields += rep.Repaired
	s.Anomalies += len(rep.Findings)
	for _, w := range rep.Warnings {
		switch w.Kind {
		case KindUnrepairable:
			s.UnrepairableFields++
		case KindEncodingRepairError:
			s.RepairErrors++
		case KindMalformedLinkage:
			s.LinkageWarnings++
		case KindNoLanguage:
			s.LanguageWarnings++
		}
	}
}

type job struct {
	index int
	rec   *marc.Record
	done  chan *RecordReport
}

// Run reads src to the end, processes records on the configured number of
// workers and hands reports to sink in input order. Structurally corrupt
// records are reported as skips and the run continues. Run stops early only
// on a read error that is not a record structure error, a sink error, or
// context cancellation.
func (o *Orchestrator) Run(ctx context.Context, src Source, sink Sink) (Summary, error) {
	var sum Summary
	g, ctx := errgroup.WithContext(ctx)
	work := make(chan *job)
	order := make(chan *job, o.workers*4)

	g.Go(func() error {
		defer close(work)
		defer close(order)
		for index := 0; ; index++ {
			rec, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			j := &job{index: index, rec: rec, done: make(chan *RecordReport, 1)}
			if err != nil {
				var rse *marc.RecordStructureError
				if !errors.As(err, &rse) {
					return fmt.Errorf("read record %d: %w", index, err)
				}
				o.logger.Warn("skipping record", "index", index, "offset", rse.Offset, "reason", rse.Reason)
				j.done <- &RecordReport{Index: index, ID: recordID(index, nil), Skip: err}
			}
			select {
			case order <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
			if j.rec == nil {
				continue
			}
			select {
			case work <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	for i := 0; i < o.workers; i++ {
		g.Go(func() error {
			for j := range work {
				j.done <- o.Process(j.index, j.rec)
			}
			return nil
		})
	}

	g.Go(func() error {
		for j := range order {
			var rep *RecordReport
			select {
			case rep = <-j.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			sum.Add(rep)
			if err := sink.Put(rep); err != nil {
				return fmt.Errorf("emit record %s: %w", rep.ID, err)
			}
		}
		return nil
	})

	err := g.Wait()
	o.logger.Info("run finished",
		"records", sum.Records,
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"repaired_fields", sum.RepairedFields,
		"anomalies", sum.Anomalies,
	)
	return sum, err
}
