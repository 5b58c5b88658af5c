// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import "time"

// Application-class tags of the SNMP SMI types (RFC 2578, RFC 3416).
const (
	snmpTypeIPAddress  = 0
	snmpTypeCounter32  = 1
	snmpTypeUnsigned32 = 2
	snmpTypeTimeTicks  = 3
	snmpTypeOpaque     = 4
	snmpTypeCounter64  = 6
)

// Context-specific tags of the SNMPv2 var-bind exceptions.
const (
	tagNoSuchObject   = 0
	tagNoSuchInstance = 1
	tagEndOfMibView   = 2
)

// Limits and defaults.
const (
	MaxOIDArcs      = 128
	MaxWalkSteps    = 1000000
	MaxDatagramSize = 65535

	DefaultPort           = 161
	DefaultTimeout        = 300 * time.Millisecond
	MaxTimeout            = 10 * time.Second
	DefaultRetries        = 3
	MaxRetries            = 10
	DefaultMaxRepetitions = 25
	MaxMaxRepetitions     = 80
	DefaultMaxMsgSize     = 1360
	MinMaxMsgSize         = 484

	// Допустимое расхождение engineTime (RFC 3414 §3.2 7b)
	timeWindowSeconds = 150
)

// msgFlags bits (RFC 3412 §6.4).
const (
	msgFlagAuth       = 0x01
	msgFlagPriv       = 0x02
	msgFlagReportable = 0x04
)

const (
	versionV2c = 1
	versionV3  = 3

	securityModelUSM = 3
)

// usmStats and snmpTargetMIB counters reported by agents in REPORT PDUs.
var (
	oidUsmStatsUnsupportedSecLevels = OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 1, 0}
	oidUsmStatsNotInTimeWindows     = OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 2, 0}
	oidUsmStatsUnknownUserNames     = OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 3, 0}
	oidUsmStatsUnknownEngineIDs     = OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 4, 0}
	oidUsmStatsWrongDigests         = OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 5, 0}
	oidUsmStatsDecryptionErrors     = OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 6, 0}
	oidSnmpUnknownContexts          = OID{1, 3, 6, 1, 6, 3, 12, 1, 5, 0}
)

// Well-known objects carried at the head of every SNMPv2 notification.
var (
	OIDSysUpTime   = OID{1, 3, 6, 1, 2, 1, 1, 3, 0}
	OIDSnmpTrapOID = OID{1, 3, 6, 1, 6, 3, 1, 1, 4, 1, 0}
)
