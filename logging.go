// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cihub/seelog"
	"github.com/davecgh/go-spew/spew"
)

const logFormat = "%Date(Mon Jan _2 15:04:05.000000) [%LEV] %Msg%n"

// NewLogger builds a seelog logger writing to w at level and above:
// "trace", "debug", "info", "warn", "error", "critical" or "off".
func NewLogger(w io.Writer, level string) (seelog.LoggerInterface, error) {
	if level == "" || level == "off" {
		return seelog.Disabled, nil
	}
	lvl, ok := seelog.LogLevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return seelog.LoggerFromWriterWithMinLevelAndFormat(w, lvl, logFormat)
}

// dump formats v with spew when the message is actually written.
type dump struct{ v any }

func (d dump) String() string { return spew.Sdump(d.v) }

// hexDump formats a datagram for trace logs.
type hexDump []byte

func (d hexDump) String() string { return hex.Dump(d) }
