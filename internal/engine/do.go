// Package engine composes small actions, used by the command shell.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/espmesh/meshctl/helpers"
	"github.com/juju/errors"
)

const FmtErrContext = "`%s`" // errors.Annotatef(err, FmtErrContext, doer.String())

type Doer interface {
	Validate() error
	Do(context.Context) error
	String() string // for logs
}

type Nothing struct{ Name string }

func (self Nothing) Do(ctx context.Context) error { return nil }
func (self Nothing) Validate() error              { return nil }
func (self Nothing) String() string               { return self.Name }

type Func struct {
	Name string
	F    func(context.Context) error
	V    ValidateFunc
}

func (self Func) Validate() error              { return useValidator(self.V) }
func (self Func) Do(ctx context.Context) error { return self.F(ctx) }
func (self Func) String() string               { return self.Name }

// Sleep is interrupted by context cancel.
type Sleep struct{ time.Duration }

func (self Sleep) Validate() error { return nil }
func (self Sleep) Do(ctx context.Context) error {
	tmr := time.NewTimer(self.Duration)
	defer tmr.Stop()
	select {
	case <-tmr.C:
		return nil
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}
func (self Sleep) String() string { return fmt.Sprintf("Sleep(%v)", self.Duration) }

type RepeatN struct {
	N uint
	D Doer
}

func (self RepeatN) Validate() error { return self.D.Validate() }
func (self RepeatN) Do(ctx context.Context) error {
	var err error
	for i := uint(1); i <= self.N && err == nil; i++ {
		if err = ctx.Err(); err != nil {
			return errors.Annotatef(err, "loop %d/%d", i, self.N)
		}
		err = self.D.Do(ctx)
	}
	return err
}
func (self RepeatN) String() string {
	return fmt.Sprintf("RepeatN(N=%d D=%s)", self.N, self.D.String())
}

type ValidateFunc func() error

func useValidator(v ValidateFunc) error {
	if v == nil {
		return nil
	}
	return v()
}

type Fail struct{ E error }

func (self Fail) Validate() error              { return self.E }
func (self Fail) Do(ctx context.Context) error { return self.E }
func (self Fail) String() string               { return self.E.Error() }

const seqBuffer uint = 8

// Sequence executor. Error in one action aborts whole group.
// Build with NewSeq().Append()
type Seq struct {
	name  string
	_b    [seqBuffer]Doer
	items []Doer
}

func NewSeq(name string) *Seq {
	seq := &Seq{name: name}
	seq.items = seq._b[:0]
	return seq
}

func (seq *Seq) Append(d Doer) *Seq {
	seq.items = append(seq.items, d)
	return seq
}

func (seq *Seq) Len() int { return len(seq.items) }

func (seq *Seq) Validate() error {
	errs := make([]error, 0, len(seq.items))
	for _, d := range seq.items {
		if err := d.Validate(); err != nil {
			err = errors.Annotatef(err, "seq=%s node=%s validate", seq.String(), d.String())
			errs = append(errs, err)
		}
	}
	return helpers.FoldErrors(errs)
}

func (seq *Seq) Do(ctx context.Context) error {
	for _, d := range seq.items {
		if err := d.Do(ctx); err != nil {
			return errors.Annotatef(err, FmtErrContext, d.String())
		}
	}
	return nil
}

func (seq *Seq) String() string {
	return seq.name
}
