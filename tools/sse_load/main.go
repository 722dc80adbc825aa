// Command sse_load opens many subscribers on the dashboard report stream and measures fan-out.
// With --trigger it requests one scan once every connection is open, so each subscriber
// should receive exactly one new report.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	reports     atomic.Int64
	// firstReport holds the slowest delivery of the triggered report, in nanoseconds since trigger.
	firstReport atomic.Int64
}

func main() {
	var (
		baseURL      string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
		trigger      bool
		tickers      string
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "dashboard base URL")
	flag.IntVar(&connections, "conns", 500, "number of concurrent stream subscribers")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread connection starts across this window")
	flag.BoolVar(&trigger, "trigger", false, "request one scan after all subscribers connect")
	flag.StringVar(&tickers, "tickers", "SPY,QQQ", "tickers for the triggered scan")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}
	if rampUp == 0 && connections > 100 {
		// 1 second per 500 connections
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
	}

	logger.Info("starting report stream load",
		zap.String("url", baseURL),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	var (
		st        stats
		wg        sync.WaitGroup
		triggered atomic.Int64
	)
	start := time.Now()
	streamURL := strings.TrimRight(baseURL, "/") + "/report/stream"

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, streamURL, &st, &triggered)
		}()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("status",
					zap.Int64("connected", st.connected.Load()),
					zap.Int64("connect_errs", st.connectErrs.Load()),
					zap.Int64("stream_errs", st.streamErrs.Load()),
					zap.Int64("reports", st.reports.Load()),
					zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
			}
		}
	}()

	if trigger {
		waitConnected(ctx, &st, int64(connections))
		triggered.Store(time.Now().UnixNano())
		if err := requestScan(ctx, client, baseURL, tickers); err != nil {
			logger.Error("scan trigger failed", zap.Error(err))
		}
	}

	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d reports=%d elapsed=%s reports/s=%.2f slowest_delivery=%s\n",
		st.connected.Load(),
		st.connectErrs.Load(),
		st.streamErrs.Load(),
		st.reports.Load(),
		elapsed.Truncate(time.Millisecond),
		float64(st.reports.Load())/elapsed.Seconds(),
		time.Duration(st.firstReport.Load()).Truncate(time.Millisecond),
	)
}

func subscribe(ctx context.Context, client *http.Client, streamURL string, st *stats, triggered *atomic.Int64) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		st.connectErrs.Add(1)
		return
	}

	st.connected.Add(1)
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				st.streamErrs.Add(1)
			}
			return
		}
		if strings.TrimSpace(line) != "event: report" {
			continue
		}

		st.reports.Add(1)
		if at := triggered.Load(); at > 0 {
			took := time.Now().UnixNano() - at
			for {
				cur := st.firstReport.Load()
				if took <= cur || st.firstReport.CompareAndSwap(cur, took) {
					break
				}
			}
		}
	}
}

func waitConnected(ctx context.Context, st *stats, want int64) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for st.connected.Load()+st.connectErrs.Load() < want {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func requestScan(ctx context.Context, client *http.Client, baseURL, tickers string) error {
	form := url.Values{"index": {"custom"}, "tickers": {tickers}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/scan", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("scan request: status %d", resp.StatusCode)
	}
	return nil
}
