// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/cihub/seelog"

	PowerSNMP "github.com/OlegPowerC/powersnmp"
	"github.com/OlegPowerC/powersnmp/config"
)

/*
Тестирование при помощи net-snmp, учетные данные берутся из файла целей
(версия 3 - пользователи USM, версия 2c - принимаемые community):

snmpinform -v 3 -u snmpuser -a sha -A pass123456 -l authPriv -x aes -X priv123456 -e 0x80001f8880f7996d5a41965d69 192.168.0.143 42 coldStart.0
snmpinform -v 3 -u snmpuser256 -a sha -A pass123456 -l authPriv -x aes-256 -X priv123456 -e 0x80001f8880f7996d5a41965d69 192.168.0.143 42 coldStart.0
snmptrap -v 3 -u snmpuser -a sha -A pass123456 -l authPriv -x aes -X priv123456 -e 0x8000000001020304 192.168.0.143 42 coldStart.0
snmpinform -v 2c -c public 192.168.0.143 42 coldStart.0

Тут 192.168.0.143 - ваш IP куда посылать трап, а -e у snmpinform должен
совпадать с -engine приемника
*/

// credentialsFromFile turns the targets of a file into receiver credentials.
func credentialsFromFile(f *config.File) (*PowerSNMP.NotificationCredentials, error) {
	creds := &PowerSNMP.NotificationCredentials{Users: make(map[string]PowerSNMP.USMCredentials)}
	for _, t := range f.Targets {
		v, err := PowerSNMP.ParseVersion(t.Version)
		if err != nil {
			return nil, err
		}
		if v == PowerSNMP.Version2c {
			creds.Communities = append(creds.Communities, t.Community)
			continue
		}
		auth, err := PowerSNMP.ParseAuthProtocol(t.AuthProtocol)
		if err != nil {
			return nil, err
		}
		priv, err := PowerSNMP.ParsePrivProtocol(t.PrivProtocol)
		if err != nil {
			return nil, err
		}
		creds.Users[t.Username] = PowerSNMP.USMCredentials{
			Auth: auth, AuthPassword: t.AuthPassword,
			Priv: priv, PrivPassword: t.PrivPassword,
		}
	}
	return creds, nil
}

func handlePacket(conn net.PacketConn, src net.Addr, data []byte, creds *PowerSNMP.NotificationCredentials, log seelog.LoggerInterface) {
	ver, sender, err := PowerSNMP.PeekSender(data)
	if err != nil {
		log.Warnf("%s: ошибка разбора пакета: %v", src, err)
		return
	}
	n, err := PowerSNMP.ParseNotification(data, creds)
	if err != nil {
		if PowerSNMP.IsSecurityKind(err, PowerSNMP.SecUnknownEngineID) {
			// Отправитель inform узнает наш EngineID
			report, rerr := PowerSNMP.DiscoveryReport(data, creds.LocalEngine)
			if rerr == nil {
				_, rerr = conn.WriteTo(report, src)
			}
			if rerr != nil {
				log.Warnf("%s: discovery report: %v", src, rerr)
			}
			return
		}
		log.Warnf("%s %s %q: неудалось разобрать пакет: %v", src, ver, sender, err)
		return
	}

	ackStatus := "(ACK не требуется)"
	if n.Type == PowerSNMP.InformRequest {
		ack, err := n.Acknowledge()
		if err == nil {
			_, err = conn.WriteTo(ack, src)
		}
		ackStatus = "(ACK отправлен)"
		if err != nil {
			ackStatus = fmt.Sprintf("(ACK не отправлен: %v)", err)
		}
	}

	fmt.Println("─────────────────────────────────────────────────────────")
	fmt.Printf("Source:       %s\n", src)
	fmt.Printf("SNMP Version: %s\n", n.Version)
	if n.Version == PowerSNMP.Version3 {
		fmt.Printf("User:         %s (%s), EngineID %s\n", n.UserName, n.SecurityLevel, hex.EncodeToString(n.EngineID))
	} else {
		fmt.Printf("Community:    %s\n", n.Community)
	}
	fmt.Printf("Message Type: %s %s\n", n.Type, ackStatus)
	fmt.Printf("RequestID:    %d\n", n.RequestID)
	fmt.Printf("Uptime:       %s\n", n.Uptime)
	fmt.Printf("Trap OID:     %s\n", n.TrapOID)
	fmt.Printf("VarBinds:     %d\n", len(n.VarBinds))
	fmt.Println("─────────────────────────────────────────────────────────")
	for _, vb := range n.VarBinds {
		fmt.Println(vb.Name, "=", PowerSNMP.FormatValue(vb.Value), ":", PowerSNMP.TypeName(vb.Value))
	}
}

func main() {
	Listen := flag.String("l", ":162", "Listen address")
	EngineID := flag.String("engine", "", "Local engine ID in hex, generated when empty")
	Targets := flag.String("f", "", "Targets file with users and communities (default POWERSNMP_CONFIG)")
	DebugLevel := flag.String("debug", "", "Log level: trace, debug, info, warn, error, off (default POWERSNMP_LOG_LEVEL)")
	flag.Parse()

	envCfg, err := config.LoadEnv()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if *Targets == "" {
		*Targets = envCfg.Config
	}
	if *DebugLevel == "" {
		*DebugLevel = envCfg.LogLevel
	}
	log, err := PowerSNMP.NewLogger(os.Stderr, *DebugLevel)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Flush()

	f, err := config.Load(*Targets)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	creds, err := credentialsFromFile(f)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	var id []byte
	if *EngineID != "" {
		if id, err = hex.DecodeString(*EngineID); err != nil {
			fmt.Println("engine:", err)
			os.Exit(1)
		}
	}
	creds.LocalEngine = PowerSNMP.NewLocalEngine(id)

	conn, err := net.ListenPacket("udp", *Listen)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("Listening on %s, EngineID %s. Press Ctrl+C to stop\n", conn.LocalAddr(), hex.EncodeToString(creds.LocalEngine.ID()))

	buff := make([]byte, PowerSNMP.MaxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buff)
		if err != nil {
			log.Errorf("read error: %v", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buff[:n])
		go handlePacket(conn, addr, data, creds, log)
	}
}
