package provider

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Attempt is one step of an ordered fallback.
type Attempt[In, Out any] struct {
	Name string
	Run  func(ctx context.Context, in In) (Out, error)
	// Accept decides whether a successful result ends the chain. Nil
	// accepts every successful result.
	Accept func(Out) bool
}

// Outcome is the result of FirstSuccess.
type Outcome[Out any] struct {
	// Value is the accepted result.
	Value Out
	// Name and Index identify the attempt that produced Value. Index is -1
	// when no attempt was accepted.
	Name  string
	Index int
	// Rejected holds results that returned without error but were not
	// accepted, in attempt order.
	Rejected []Out
	// Errors holds the failure of every attempt that errored.
	Errors []error
}

// FirstSuccess runs attempts in order and returns the first accepted result.
// It only returns an error when no attempt was accepted or ctx ended.
func FirstSuccess[In, Out any](ctx context.Context, attempts []Attempt[In, Out], in In) (Outcome[Out], error) {
	out := Outcome[Out]{Index: -1}
	for i, a := range attempts {
		if err := ctx.Err(); err != nil {
			out.Errors = append(out.Errors, err)
			return out, eris.Wrap(err, "provider: fallback interrupted")
		}

		v, err := a.Run(ctx, in)
		if err != nil {
			zap.L().Debug("provider: attempt failed, trying next",
				zap.String("attempt", a.Name),
				zap.Error(err),
			)
			out.Errors = append(out.Errors, err)
			continue
		}
		if a.Accept != nil && !a.Accept(v) {
			zap.L().Debug("provider: attempt result rejected, trying next",
				zap.String("attempt", a.Name),
			)
			out.Rejected = append(out.Rejected, v)
			continue
		}

		out.Value = v
		out.Name = a.Name
		out.Index = i
		return out, nil
	}

	if len(out.Errors) > 0 {
		return out, eris.Wrap(errors.Join(out.Errors...), "provider: all attempts failed")
	}
	return out, eris.New("provider: no attempt produced an accepted result")
}
