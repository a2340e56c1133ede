// Command sermo-loadtest drives many concurrent chat clients against
// a server to measure throughput and reconnect behavior under load.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/TheRareFew/sermo-sub001/pkg/client"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat."

var loremWords = strings.Fields(loremIpsum)

// Stats tracks run-wide counters
type Stats struct {
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	sendErrors       atomic.Int64
	reconnects       atomic.Int64
	failures         atomic.Int64
}

func (s *Stats) report(elapsed time.Duration) string {
	sent := s.messagesSent.Load()
	rate := float64(sent) / elapsed.Seconds()
	return fmt.Sprintf(
		"sent=%d received=%d send_errors=%d reconnects=%d failures=%d rate=%.1f msg/s",
		sent, s.messagesReceived.Load(), s.sendErrors.Load(),
		s.reconnects.Load(), s.failures.Load(), rate,
	)
}

func randomMessage() string {
	n := 3 + rand.Intn(12)
	words := make([]string, n)
	for i := range words {
		words[i] = loremWords[rand.Intn(len(loremWords))]
	}
	return strings.Join(words, " ")
}

func main() {
	var (
		wsURL    = flag.String("ws-url", "ws://localhost:8000/api/v1/ws/chat", "websocket endpoint")
		apiURL   = flag.String("api-url", "http://localhost:8000/api/v1", "REST API base URL")
		channel  = flag.String("channel", "loadtest", "channel to flood")
		clients  = flag.Int("clients", 10, "number of concurrent clients")
		interval = flag.Duration("interval", 2*time.Second, "average delay between messages per client")
		duration = flag.Duration("duration", time.Minute, "how long to run")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	stats := &Stats{}

	stop := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
			logger.Println("interrupted, shutting down")
			close(stop)
		case <-time.After(*duration):
			close(stop)
		}
	}()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(id, *wsURL, *apiURL, *channel, *interval, stats, stop, logger)
		}(i)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				logger.Println(stats.report(time.Since(start)))
			case <-stop:
				return
			}
		}
	}()

	wg.Wait()
	fmt.Println("final:", stats.report(time.Since(start)))
}

// runClient keeps one session alive and chatting until stop closes
func runClient(id int, wsURL, apiURL, channel string, interval time.Duration, stats *Stats, stop <-chan struct{}, logger *log.Logger) {
	cfg := client.DefaultConnConfig()
	prober := client.NewHTTPHealthProber(apiURL, cfg.ProbeTimeout)
	fetcher := client.NewHTTPHistoryFetcher(apiURL, client.DefaultPageSize)
	rec := client.NewReconciler(fetcher, client.DefaultPageSize)

	session := client.NewSession(func(chID string) client.ConnectionInterface {
		return client.NewConn(func() client.Transport {
			return client.NewWebSocketTransport(wsURL, nil)
		}, prober, cfg)
	}, rec)
	defer session.Close()

	name := fmt.Sprintf("loadtest-%d", id)
	if err := session.Bind(channel, name); err != nil {
		logger.Printf("client %d: bind failed: %v", id, err)
		stats.failures.Add(1)
		return
	}

	go func() {
		for {
			select {
			case ev := <-session.Events():
				switch ev := ev.(type) {
				case client.MessageAppendedEvent:
					stats.messagesReceived.Add(1)
				case client.ConnectionStatusEvent:
					if ev.State == client.StateReconnecting {
						stats.reconnects.Add(1)
					}
					if ev.State == client.StateFailed {
						stats.failures.Add(1)
					}
				}
			case <-stop:
				return
			}
		}
	}()

	// Jitter the send loop so clients do not fire in lockstep
	for {
		jitter := time.Duration(float64(interval) * (0.5 + rand.Float64()))
		select {
		case <-stop:
			return
		case <-time.After(jitter):
		}

		if _, err := session.SendChat(randomMessage()); err != nil {
			stats.sendErrors.Add(1)
			continue
		}
		stats.messagesSent.Add(1)
	}
}
