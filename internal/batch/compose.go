// Package batch packs several contract calls into one call on a batch
// executor contract, with a single authorization tree covering all of them.
package batch

import (
	"errors"
	"fmt"

	"ammclient/internal/auth"
	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

// ExecutorMethod is the batch executor's entry point:
// batch(user: address, calls: vec<(address, symbol, vec<val>)>, atomic: bool).
const ExecutorMethod = "batch"

// ErrEmptyBatch is returned when no calls are given.
var ErrEmptyBatch = errors.New("batch has no calls")

// Call is one constituent call and the sub-authorizations it needs, e.g. the
// transfers a deposit pulls from the signer.
type Call struct {
	Contract strkey.Address
	Method   string
	Args     []scval.Value
	SubAuth  []auth.Node
}

// Compose encodes calls, in order, as arguments to the executor's batch
// method. The returned tree has one node per constituent call, each carrying
// that call's own sub-authorizations. With atomic set, the executor fails the
// whole batch when any call fails.
//
// Inputs are copied: mutating calls after Compose returns does not change the
// encoded batch.
func Compose(executor, signer strkey.Address, calls []Call, atomic bool, credential auth.CredentialKind) (auth.Call, auth.Node, error) {
	if len(calls) == 0 {
		return auth.Call{}, auth.Node{}, ErrEmptyBatch
	}
	if !executor.IsContract() {
		return auth.Call{}, auth.Node{}, fmt.Errorf("batch executor %q is not a contract", executor)
	}
	if signer.IsZero() {
		return auth.Call{}, auth.Node{}, fmt.Errorf("batch signer is required")
	}

	encoded := make([]scval.Value, 0, len(calls))
	subs := make([]auth.Node, 0, len(calls))
	for i, call := range calls {
		inner, err := auth.NewCall(call.Contract, call.Method, call.Args...)
		if err != nil {
			return auth.Call{}, auth.Node{}, fmt.Errorf("calls[%d]: %w", i, err)
		}
		method, err := scval.NewSymbol(call.Method)
		if err != nil {
			return auth.Call{}, auth.Node{}, fmt.Errorf("calls[%d]: %w", i, err)
		}

		encoded = append(encoded, scval.NewVec(
			scval.NewAddress(inner.Contract),
			method,
			scval.NewVec(inner.Args...),
		))
		subs = append(subs, auth.NewNode(inner, credential, call.SubAuth...))
	}

	top, err := auth.NewCall(executor, ExecutorMethod,
		scval.NewAddress(signer),
		scval.NewVec(encoded...),
		scval.Bool(atomic),
	)
	if err != nil {
		return auth.Call{}, auth.Node{}, err
	}
	return top, auth.BuildRootAuthorization(top, credential, subs...), nil
}

// Decode reads the constituent calls back out of an executor call, in order.
func Decode(top auth.Call) ([]auth.Call, bool, error) {
	if top.Method != ExecutorMethod || len(top.Args) != 3 {
		return nil, false, fmt.Errorf("not a batch call: %s/%d args", top.Method, len(top.Args))
	}
	list, ok := top.Args[1].(scval.Vec)
	if !ok {
		return nil, false, fmt.Errorf("batch calls: expected vec, got %s", kindOf(top.Args[1]))
	}
	atomic, ok := top.Args[2].(scval.Bool)
	if !ok {
		return nil, false, fmt.Errorf("batch atomic flag: expected bool, got %s", kindOf(top.Args[2]))
	}

	out := make([]auth.Call, 0, list.Len())
	for i, item := range list.Items() {
		tuple, ok := item.(scval.Vec)
		if !ok || tuple.Len() != 3 {
			return nil, false, fmt.Errorf("batch calls[%d]: malformed tuple", i)
		}
		addr, ok := tuple.At(0).(scval.Address)
		if !ok {
			return nil, false, fmt.Errorf("batch calls[%d]: expected address", i)
		}
		method, ok := tuple.At(1).(scval.Symbol)
		if !ok {
			return nil, false, fmt.Errorf("batch calls[%d]: expected symbol", i)
		}
		args, ok := tuple.At(2).(scval.Vec)
		if !ok {
			return nil, false, fmt.Errorf("batch calls[%d]: expected args vec", i)
		}
		out = append(out, auth.Call{Contract: addr.Identity(), Method: string(method), Args: args.Items()})
	}
	return out, bool(atomic), nil
}

func kindOf(v scval.Value) scval.Kind {
	if v == nil {
		return "nil"
	}
	return v.Kind()
}
