// Package main runs a price tick producer for local end-to-end runs: it
// polls an upstream ticker API per symbol, computes a rolling average and
// anomaly flag, and publishes ticks to the gateway's Kafka topic.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"market-gateway/internal/domain"
)

const (
	tickerURL          = "https://api.binance.com/api/v3/ticker/price?symbol=%s"
	historyWindow      = 5
	deviationThreshold = 0.05
)

// symbolPair maps an upstream ticker symbol to the display symbol.
type symbolPair struct {
	upstream string
	display  string
}

var defaultSymbols = []symbolPair{
	{"BTCUSDT", "BTC-USD"},
	{"ETHUSDT", "ETH-USD"},
	{"SOLUSDT", "SOL-USD"},
	{"ADAUSDT", "ADA-USD"},
}

func main() {
	_ = godotenv.Load()

	brokers := flag.String("kafka-brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "Comma-separated Kafka brokers")
	topic := flag.String("kafka-topic", envOr("KAFKA_TOPIC", "market_prices"), "Kafka topic for price events")
	interval := flag.Duration("interval", 3*time.Second, "Delay between polling cycles")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(splitList(*brokers)...),
		Topic:    *topic,
		Balancer: &kafka.Hash{}, // same symbol always lands on the same partition
	}
	defer writer.Close()

	p := &producer{
		writer:  writer,
		client:  &http.Client{Timeout: 2 * time.Second},
		history: make(map[string][]float64),
		logger:  logger,
	}

	logger.Info("producer started",
		zap.String("topic", *topic),
		zap.Duration("interval", *interval))

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("producer stopping")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

type producer struct {
	writer  *kafka.Writer
	client  *http.Client
	history map[string][]float64
	logger  *zap.Logger
}

// cycle polls every symbol once and publishes the resulting ticks.
func (p *producer) cycle(ctx context.Context) {
	for _, sym := range defaultSymbols {
		price, source := p.fetchPrice(ctx, sym)

		avg := p.rollingAverage(sym.display, price)
		deviation := math.Abs(price-avg) / avg
		isAnomaly := deviation > deviationThreshold

		if isAnomaly {
			p.logger.Warn("anomalous tick",
				zap.String("symbol", sym.display),
				zap.Float64("price", price),
				zap.Float64("deviation", deviation))
		}

		event := &domain.PriceEvent{
			Symbol:       sym.display,
			Price:        price,
			AveragePrice: &avg,
			IsAnomaly:    isAnomaly,
			Source:       source,
			Timestamp:    time.Now().UTC(),
		}

		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("encode tick", zap.Error(err))
			continue
		}

		err = p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(sym.display),
			Value: payload,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Error("publish tick",
				zap.String("symbol", sym.display),
				zap.Error(err))
		}
	}
}

// fetchPrice queries the upstream ticker, falling back to a synthetic
// price when the API is unreachable.
func (p *producer) fetchPrice(ctx context.Context, sym symbolPair) (float64, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf(tickerURL, sym.upstream), nil)
	if err != nil {
		return syntheticPrice(sym.display), "backup-gen"
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return syntheticPrice(sym.display), "backup-gen"
	}
	defer resp.Body.Close()

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return syntheticPrice(sym.display), "backup-gen"
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil || price <= 0 {
		return syntheticPrice(sym.display), "backup-gen"
	}

	return price, "binance-api"
}

// rollingAverage updates the bounded history for a symbol and returns the
// mean over the retained window.
func (p *producer) rollingAverage(symbol string, price float64) float64 {
	history := append(p.history[symbol], price)
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	p.history[symbol] = history

	var sum float64
	for _, v := range history {
		sum += v
	}
	return sum / float64(len(history))
}

// syntheticPrice generates a plausible price when the upstream is down.
func syntheticPrice(symbol string) float64 {
	base := 100.0
	if symbol == "BTC-USD" {
		base = 90000.0
	}
	return base * (1 + rand.Float64()*0.05)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
