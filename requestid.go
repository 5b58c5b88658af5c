// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"math"
	"math/rand"
	"sync/atomic"
)

// RequestIDGenerator hands out request-id (and msgID) values.
// Implementations must be safe for concurrent use.
type RequestIDGenerator interface {
	NextRequestID() int32
}

type counterIDs struct {
	next atomic.Int32
}

// NewRandomRequestIDs starts at a random positive value and increments.
func NewRandomRequestIDs() RequestIDGenerator {
	g := &counterIDs{}
	g.next.Store(rand.Int31n(math.MaxInt32/2) + 1)
	return g
}

// NewSequentialRequestIDs yields start, start+1, ... for reproducible tests.
func NewSequentialRequestIDs(start int32) RequestIDGenerator {
	g := &counterIDs{}
	g.next.Store(start)
	return g
}

func (g *counterIDs) NextRequestID() int32 {
	for {
		cur := g.next.Load()
		next := cur + 1
		// После переполнения начинаем снова с 1
		if next <= 0 {
			next = 1
		}
		if g.next.CompareAndSwap(cur, next) {
			return cur
		}
	}
}
