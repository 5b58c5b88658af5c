// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"context"
	"errors"
	"fmt"
)

// WalkResult is one element streamed by WalkChan: a var-bind of the subtree,
// or the error that ended the walk (always the last element).
type WalkResult struct {
	VarBind
	Err error
}

// Walk returns the subtree below root using get-next requests.
//
// On failure the var-binds collected so far are returned with the error.
func (s *session) Walk(ctx context.Context, root OID) ([]VarBind, error) {
	return s.collect(ctx, root, false)
}

// BulkWalk is Walk with get-bulk requests of Params.MaxRepetitions.
//
// Example:
//
//	ifDescr := powersnmp.MustParseOID("1.3.6.1.2.1.2.2.1.2")
//	vbs, err := client.BulkWalk(ctx, ifDescr)
//	for _, vb := range vbs {
//	    fmt.Println(vb)
//	}
func (s *session) BulkWalk(ctx context.Context, root OID) ([]VarBind, error) {
	return s.collect(ctx, root, true)
}

func (s *session) collect(ctx context.Context, root OID, bulk bool) ([]VarBind, error) {
	var out []VarBind
	err := s.WalkFunc(ctx, root, bulk, func(vb VarBind) error {
		out = append(out, vb)
		return nil
	})
	return out, err
}

// WalkFunc calls fn for every var-bind below root in OID order. The walk
// ends at the first OID outside the subtree, at endOfMibView or when the
// agent answers noSuchName. An error from fn stops the walk and is returned.
//
// Every OID must be greater than the one before it; otherwise the walk
// fails with an error wrapping ErrProtocolViolation.
func (s *session) WalkFunc(ctx context.Context, root OID, bulk bool, fn func(VarBind) error) error {
	cursor := root
	steps := 0
	for {
		var (
			vbs []VarBind
			err error
		)
		if bulk {
			vbs, err = s.GetBulk(ctx, 0, s.params.MaxRepetitions, cursor)
		} else {
			vbs, err = s.GetNext(ctx, cursor)
		}
		if err != nil {
			var pe *ProtocolError
			// Агенты без поддержки v2 исключений отвечают noSuchName в конце MIB
			if errors.As(err, &pe) && pe.Status == NoSuchName {
				return nil
			}
			return err
		}
		if len(vbs) == 0 {
			return nil
		}
		for _, vb := range vbs {
			if vb.Value == EndOfMibView {
				return nil
			}
			//Проверяем не зациклились ли
			if vb.Name.Compare(cursor) <= 0 {
				return fmt.Errorf("%w: %s returned after %s", ErrProtocolViolation, vb.Name, cursor)
			}
			if !vb.Name.IsDescendantOf(root) {
				return nil
			}
			steps++
			if steps > MaxWalkSteps {
				return protocolViolationf("walk of %s exceeded %d steps", root, MaxWalkSteps)
			}
			if err := fn(vb); err != nil {
				return err
			}
			cursor = vb.Name
		}
	}
}

// WalkChan streams the walk through a channel that is closed when the walk
// ends. A failure is delivered as the last WalkResult. Cancel ctx to stop
// a walk whose channel is no longer read.
//
// Example:
//
//	for r := range client.WalkChan(ctx, ifTable, true) {
//	    if r.Err != nil {
//	        log.Printf("walk stopped: %v", r.Err)
//	        break
//	    }
//	    fmt.Println(r.VarBind)
//	}
func (s *session) WalkChan(ctx context.Context, root OID, bulk bool) <-chan WalkResult {
	ch := make(chan WalkResult, s.params.MaxRepetitions)
	go func() {
		defer close(ch)
		err := s.WalkFunc(ctx, root, bulk, func(vb VarBind) error {
			select {
			case ch <- WalkResult{VarBind: vb}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case ch <- WalkResult{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}
