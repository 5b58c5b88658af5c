// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cihub/seelog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	PowerSNMP "github.com/OlegPowerC/powersnmp"
	"github.com/OlegPowerC/powersnmp/config"
)

var outMu sync.Mutex

// queryTarget reads the OIDs of one target and prints them as one block.
func queryTarget(ctx context.Context, t config.Target, extra []PowerSNMP.OID, opts []PowerSNMP.Option) error {
	params, err := t.Params()
	if err != nil {
		return err
	}
	oids, err := t.ParseOIDs()
	if err != nil {
		return err
	}
	oids = append(oids, extra...)
	if len(oids) == 0 {
		return fmt.Errorf("target %q: no OIDs to query", t.Name)
	}

	client, err := PowerSNMP.Dial(ctx, params, opts...)
	if err != nil {
		return fmt.Errorf("target %q: %w", t.Name, err)
	}
	defer client.Close()

	vbs, err := client.Get(ctx, oids...)
	if err != nil {
		return fmt.Errorf("target %q: %w", t.Name, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s, %s)\n", t.Name, params.Address(), params.Version())
	for _, vb := range vbs {
		fmt.Fprintf(&sb, "  %s\n", vb)
	}
	outMu.Lock()
	fmt.Print(sb.String())
	outMu.Unlock()
	return nil
}

func queryAll(ctx context.Context, targets []config.Target, extra []PowerSNMP.OID, opts []PowerSNMP.Option, log seelog.LoggerInterface) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(32)
	failed := 0
	var fmu sync.Mutex
	for _, t := range targets {
		t := t // per-iteration copy (go 1.22+ loopvar semantics under go 1.21 directive)
		g.Go(func() error {
			if err := queryTarget(ctx, t, extra, opts); err != nil {
				// Ошибка одного устройства не прерывает опрос остальных
				log.Error(err)
				fmu.Lock()
				failed++
				fmu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(targets))
	}
	return nil
}

func main() {
	Targets := flag.String("f", "", "Targets file (default POWERSNMP_CONFIG)")
	Name := flag.String("t", "", "Query only the target with this name")
	StrOids := flag.String("o", "", "Additional comma separated OIDs")
	DebugLevel := flag.String("debug", "", "Log level: trace, debug, info, warn, error, off (default POWERSNMP_LOG_LEVEL)")
	MetricsAddr := flag.String("metrics", "", "Expose Prometheus metrics on this address (default POWERSNMP_METRICS_ADDR)")
	Interval := flag.Duration("interval", 0, "Repeat the queries with this interval until interrupted")
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
	if *MetricsAddr == "" {
		*MetricsAddr = envCfg.MetricsAddr
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
	f.ApplyEnv(envCfg)
	targets := f.Targets
	if *Name != "" {
		t, ok := f.Lookup(*Name)
		if !ok {
			fmt.Printf("target %q not found in %s\n", *Name, *Targets)
			os.Exit(1)
		}
		targets = []config.Target{t}
	}

	var extra []PowerSNMP.OID
	if *StrOids != "" {
		for _, s := range strings.Split(*StrOids, ",") {
			o, err := PowerSNMP.ParseOID(strings.TrimSpace(s))
			if err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			extra = append(extra, o)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []PowerSNMP.Option{
		PowerSNMP.WithLogger(log),
		PowerSNMP.WithEngineCache(PowerSNMP.NewEngineCache()),
	}
	if *MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, PowerSNMP.WithMetrics(PowerSNMP.NewMetrics(reg)))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	for {
		err = queryAll(ctx, targets, extra, opts, log)
		if *Interval <= 0 {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*Interval):
		}
	}
	if err != nil {
		fmt.Println(err)
		log.Flush()
		os.Exit(1)
	}
}
