// Command sse_load opens many concurrent connections to the balance stream
// of a running `somtrade serve` and reports how many events each kind of
// subscriber received.
//
//	go run ./tools/sse_load --user alice --password secret --conns 500 --dur 1m
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	baseURL     string
	token       string
	user        string
	password    string
	connections int
	duration    time.Duration
	rampUp      time.Duration
	lastEventID string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "sse_load",
		Short:        "Load test the balance stream",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return run(cmd.Context(), o, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.baseURL, "url", "http://localhost:8080", "server base URL")
	f.StringVar(&o.token, "token", os.Getenv("SOMTRADE_TOKEN"), "session token, skips login")
	f.StringVar(&o.user, "user", "loadtest", "username to sign in with when no token is given")
	f.StringVar(&o.password, "password", "loadtest", "password to sign in with when no token is given")
	f.IntVar(&o.connections, "conns", 1000, "number of concurrent connections to open")
	f.DurationVar(&o.duration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	f.DurationVar(&o.rampUp, "ramp", 0, "spread connection starts across this window")
	f.StringVar(&o.lastEventID, "last-event-id", "", "resume every stream after this snapshot index")
	return cmd
}

func run(ctx context.Context, o options, l *zap.Logger) error {
	if o.connections <= 0 {
		return errors.Errorf("invalid conns: %d", o.connections)
	}
	if o.rampUp == 0 && o.connections > 100 {
		// 1 second per 500 connections
		o.rampUp = max(time.Duration(o.connections/500)*time.Second, time.Second)
		l.Info("using default ramp-up", zap.Duration("ramp", o.rampUp))
	}
	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	client := &http.Client{Transport: &http.Transport{
		MaxConnsPerHost:     o.connections + 100,
		MaxIdleConns:        o.connections + 100,
		MaxIdleConnsPerHost: o.connections + 100,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}}

	base := strings.TrimRight(o.baseURL, "/")
	token := o.token
	if token == "" {
		var err error
		if token, err = login(ctx, client, base, o.user, o.password); err != nil {
			return err
		}
	}

	streamURL := base + "/balance/stream"
	l.Info("starting balance stream load",
		zap.String("url", streamURL),
		zap.Int("conns", o.connections),
		zap.Duration("duration", o.duration),
		zap.Duration("ramp", o.rampUp))

	st := newStats()
	start := time.Now()
	var interval time.Duration
	if o.rampUp > 0 {
		interval = o.rampUp / time.Duration(o.connections)
	}

	var wg sync.WaitGroup
	for i := 0; i < o.connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(interval):
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, streamURL, token, o.lastEventID, st)
		}()
	}

	ticker := time.NewTicker(5 * time.Second)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.Info("status", append(st.fields(), zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))...)
			}
		}
	}()

	wg.Wait()
	close(done)

	elapsed := max(time.Since(start), time.Millisecond)
	snap := st.snapshot()
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d balance=%d no_data=%d error_events=%d pings=%d elapsed=%s events/s=%.2f\n",
		snap.connected, snap.connectErrs, snap.streamErrs,
		snap.events["balance"], snap.events["no_data"], snap.events["error"], snap.pings,
		elapsed.Truncate(time.Millisecond), float64(snap.total())/elapsed.Seconds())
	return nil
}

func login(ctx context.Context, client *http.Client, base, user, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": user, "password": password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "login")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode login response")
	}
	if out.Token == "" {
		return "", errors.New("login: empty token")
	}
	return out.Token, nil
}

func subscribe(ctx context.Context, client *http.Client, url, token, lastEventID string, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		st.connectFailed()
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := client.Do(req)
	if err != nil {
		st.connectFailed()
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		st.connectFailed()
		return
	}

	st.connectedOne()
	if err := readStream(resp.Body, st); err != nil && ctx.Err() == nil {
		st.streamFailed()
	}
}
