package engine

import (
	"fmt"
	"io"
	"time"
)

// Statistics are counters maintained by an Engine across the checks
// of one session.
type Statistics struct {
	Checks      int
	Sat         int
	Unsat       int
	Unknown     int
	Assertions  int
	Pushes      int
	Pops        int
	Reduced     int
	Vars        int
	Clauses     int
	Polls       int
	SearchTime  time.Duration
	LastElapsed time.Duration
}

// Add records the outcome of one check.
func (s *Statistics) Add(r Result, elapsed time.Duration) {
	s.Checks++
	switch r {
	case Sat:
		s.Sat++
	case Unsat:
		s.Unsat++
	default:
		s.Unknown++
	}
	s.SearchTime += elapsed
	s.LastElapsed = elapsed
}

// Fprint writes s to w as an s-expression of keyword/value pairs.
func (s Statistics) Fprint(w io.Writer) error {
	_, err := fmt.Fprintf(w, "(:checks %d\n :sat %d\n :unsat %d\n :unknown %d\n :assertions %d\n :pushes %d\n :pops %d\n :reduced %d\n :vars %d\n :clauses %d\n :polls %d\n :search-time %.3f)\n",
		s.Checks, s.Sat, s.Unsat, s.Unknown, s.Assertions, s.Pushes, s.Pops, s.Reduced,
		s.Vars, s.Clauses, s.Polls, s.SearchTime.Seconds())
	return err
}
