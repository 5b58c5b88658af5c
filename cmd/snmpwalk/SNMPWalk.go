// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	PowerSNMP "github.com/OlegPowerC/powersnmp"
)

func main() {
	Host := flag.String("h", "", "Switch or routers IP")
	Port := flag.Int("p", PowerSNMP.DefaultPort, "SNMP port")
	SNMPVersion := flag.String("v", "3", "SNMP version, 2c or 3, default is 3")
	SNMPuser := flag.String("u", "", "SNMP v3 USER")
	SNMPcommunity := flag.String("c", "", "Mandatory for version 2c, SNMP read community name")
	SNMPv3Context := flag.String("context", "", "SNMP v3 context")
	SNMPauthProtocol := flag.String("a", "", "SNMP auth protocol: md5, sha, sha224, sha256, sha384, sha512")
	SNMPauthPassword := flag.String("A", "", "SNMP auth password")
	SNMPprivProtocol := flag.String("x", "", "SNMP priv protocol: des, aes, aes192, aes256, aes192a, aes256a")
	SNMPprivPassword := flag.String("X", "", "SNMP priv password")
	Bulk := flag.Bool("bulk", false, "SNMP Bulk")
	DebugLevel := flag.String("debug", "off", "Log level: trace, debug, info, warn, error, off")
	StrOid := flag.String("o", "1.3.6", "SNMP OID")
	RawToo := flag.Bool("r", false, "RAW data")
	flag.Parse()

	logger, err := PowerSNMP.NewLogger(os.Stderr, *DebugLevel)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer logger.Flush()

	version, err := PowerSNMP.ParseVersion(*SNMPVersion)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	var params *PowerSNMP.Params
	if version == PowerSNMP.Version2c {
		params = PowerSNMP.NewParamsV2c(*Host, *SNMPuser, *SNMPcommunity)
	} else {
		auth, err := PowerSNMP.ParseAuthProtocol(*SNMPauthProtocol)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		priv, err := PowerSNMP.ParsePrivProtocol(*SNMPprivProtocol)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		params = PowerSNMP.NewParamsV3(*Host, *SNMPuser, auth, *SNMPauthPassword, priv, *SNMPprivPassword)
		params.ContextName = *SNMPv3Context
	}
	params.Port = *Port
	params.Retries = 5
	params.MaxRepetitions = 50
	params.Timeout = 800 * time.Millisecond

	root, err := PowerSNMP.ParseOID(*StrOid)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Second)
	defer cancel()

	client, err := PowerSNMP.Dial(ctx, params, PowerSNMP.WithLogger(logger))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer client.Close()

	ResultNumber := 0
	for r := range client.WalkChan(ctx, root, *Bulk) {
		if r.Err != nil {
			fmt.Println(r.Err)
			logger.Flush()
			os.Exit(1)
		}
		ResultNumber++
		if *RawToo {
			raw, _ := PowerSNMP.EncodeValue(r.Value)
			fmt.Println(r.Name, "=", PowerSNMP.FormatValue(r.Value), ":", PowerSNMP.TypeName(r.Value), hex.EncodeToString(raw))
		} else {
			fmt.Println(r.Name, "=", PowerSNMP.FormatValue(r.Value), ":", PowerSNMP.TypeName(r.Value))
		}
	}
	fmt.Fprintln(os.Stderr, "Total objects:", ResultNumber)
}
