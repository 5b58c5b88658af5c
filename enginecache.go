// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"bytes"
	"fmt"
	"math"
	"sync"
	"time"
)

// EngineCache keeps discovered authoritative engine parameters per
// (host, user). A cache may be shared by several clients through
// WithEngineCache; clients sharing an entry must use the same credentials.
type EngineCache struct {
	mu      sync.Mutex
	entries map[string]*engineEntry
}

func NewEngineCache() *EngineCache {
	return &EngineCache{entries: make(map[string]*engineEntry)}
}

func engineCacheKey(host, user string) string {
	return host + "\x00" + user
}

func (c *EngineCache) entry(host, user string) *engineEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := engineCacheKey(host, user)
	e, ok := c.entries[k]
	if !ok {
		e = &engineEntry{}
		c.entries[k] = e
	}
	return e
}

// Invalidate forgets the engine of host for user; the next request
// rediscovers it.
func (c *EngineCache) Invalidate(host, user string) {
	c.mu.Lock()
	e := c.entries[engineCacheKey(host, user)]
	c.mu.Unlock()
	if e != nil {
		e.invalidate()
	}
}

// EngineInfo is a snapshot of a cache entry.
type EngineInfo struct {
	EngineID []byte
	Boots    uint32
	Time     uint32
	Updated  time.Time
}

// Lookup returns the cached engine of host for user.
func (c *EngineCache) Lookup(host, user string) (EngineInfo, bool) {
	c.mu.Lock()
	e := c.entries[engineCacheKey(host, user)]
	c.mu.Unlock()
	if e == nil {
		return EngineInfo{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.discovered {
		return EngineInfo{}, false
	}
	return EngineInfo{EngineID: copyBytes(e.engineID), Boots: e.boots, Time: e.time, Updated: e.updated}, true
}

type engineEntry struct {
	mu         sync.Mutex
	discovered bool
	engineID   []byte
	boots      uint32
	time       uint32
	updated    time.Time
	keys       usmKeys
}

// engineState is what one outgoing message needs.
type engineState struct {
	engineID []byte
	boots    uint32
	time     uint32
	keys     usmKeys
}

func (e *engineEntry) isDiscovered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discovered
}

func (e *engineEntry) invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.discovered, e.engineID = false, nil
	e.boots, e.time, e.updated = 0, 0, time.Time{}
	e.keys = usmKeys{}
}

// store records a freshly discovered engine. keys are recomputed only when
// the engine ID changed.
func (e *engineEntry) store(engineID []byte, boots, engineTime uint32, now time.Time, localize func([]byte) usmKeys) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.discovered || !bytes.Equal(e.engineID, engineID) {
		e.keys = localize(engineID)
	}
	e.discovered = true
	e.engineID = copyBytes(engineID)
	e.boots, e.time, e.updated = boots, engineTime, now
}

// resync adopts boots and time from an authenticated notInTimeWindows
// report without checking them.
func (e *engineEntry) resync(boots, engineTime uint32, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boots, e.time, e.updated = boots, engineTime, now
}

// snapshot returns the engine with the time advanced by the local clock.
func (e *engineEntry) snapshot(now time.Time) engineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return engineState{
		engineID: e.engineID,
		boots:    e.boots,
		time:     e.estimatedTime(now),
		keys:     e.keys,
	}
}

func (e *engineEntry) estimatedTime(now time.Time) uint32 {
	if e.updated.IsZero() {
		return e.time
	}
	t := int64(e.time) + int64(now.Sub(e.updated)/time.Second)
	return uint32(min(max(t, 0), math.MaxInt32))
}

// checkTimeliness validates boots and time of an authenticated message from
// the engine (RFC 3414 §3.2 step 7b) and, when accepted, adopts them.
func (e *engineEntry) checkTimeliness(boots, engineTime uint32, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case boots == math.MaxInt32:
		return &SecurityError{Kind: SecNotInTimeWindow, Err: fmt.Errorf("engine boots latched at %d", boots)}
	case boots < e.boots:
		return &SecurityError{Kind: SecNotInTimeWindow, Err: fmt.Errorf("engine boots went back from %d to %d", e.boots, boots)}
	case boots == e.boots:
		expected := int64(e.estimatedTime(now))
		d := int64(engineTime) - expected
		if d > timeWindowSeconds || d < -timeWindowSeconds {
			return &SecurityError{Kind: SecNotInTimeWindow, Err: fmt.Errorf("engine time %d, expected %d", engineTime, expected)}
		}
	}
	e.boots, e.time, e.updated = boots, engineTime, now
	return nil
}
