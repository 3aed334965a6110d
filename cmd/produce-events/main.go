package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Gunvolt24/batchflow/config"
	"github.com/Gunvolt24/batchflow/internal/app"
	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/kafka"
	"github.com/Gunvolt24/batchflow/pkg/logger"
	"github.com/Gunvolt24/batchflow/pkg/validate"
)

// CLI: валидирует файл событий просмотра и публикует валидные события в топик.
// Ключ сообщения — user_id, события одного пользователя попадают в одну партицию.
func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run — возвращает код выхода; отложенные Disconnect и sync логгера
// выполняются до os.Exit.
func run(args []string, stderr io.Writer) int {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("produce-events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputPath := fs.String("in", "", "path to input (.json or .jsonl). If empty, reads jsonl from stdin.")
	formatStr := fs.String("format", "auto", "input format: auto|json|jsonl")
	topic := fs.String("topic", cfg.Consumer.Topic, "target topic")
	brokers := fs.String("brokers", strings.Join(cfg.Engine.Brokers, ","), "comma separated broker list")
	chunk := fs.Int("chunk", 500, "messages per publish call")
	dryRun := fs.Bool("dry-run", false, "validate only, do not publish")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	format, err := validate.ParseFormat(*formatStr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	path := *inputPath
	if path == "" {
		path = "/dev/stdin"
		if format == validate.FormatAuto {
			format = validate.FormatJSONL
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logg, cleanupLogger, err := logger.NewZapLogger(cfg.Logger.IsProd)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = cleanupLogger() }()

	engineCfg := app.EngineConfig(cfg.Engine)
	engineCfg.Enabled = !*dryRun
	engineCfg.ConsumersEnabled = false
	engineCfg.Broker.Brokers = strings.Split(*brokers, ",")

	var failed atomic.Int64
	engine := kafka.New(engineCfg, logg, kafka.WithProduceErrorHook(func(context.Context, string, error) {
		failed.Add(1)
	}))
	if err := engine.Connect(ctx); err != nil {
		fmt.Fprintf(stderr, "connect: %v\n", err)
		return 1
	}
	defer func() { _ = engine.Disconnect(context.Background()) }()

	p := &publisher{ctx: ctx, engine: engine, topic: *topic, size: max(*chunk, 1)}
	summary, err := validate.ReadFile(ctx, validate.NewEventValidator(), path, format, p.add)
	if err == nil {
		err = p.flush()
	}

	fmt.Fprintf(stderr, "events: %s, published: %d, failed publish calls: %d\n", summary, p.sent, failed.Load())
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "produce: %v\n", err)
		return 1
	}
	if summary.Invalid > 0 || failed.Load() > 0 {
		return 1
	}
	return 0
}

// publisher — копит валидные события и публикует их пачками.
type publisher struct {
	ctx     context.Context
	engine  kafka.Engine
	topic   string
	size    int
	pending []kafka.Message[domain.WatchEvent]
	sent    int
}

func (p *publisher) add(e domain.WatchEvent) error {
	key := e.UserID
	p.pending = append(p.pending, kafka.Message[domain.WatchEvent]{Key: &key, Value: e})
	if len(p.pending) < p.size {
		return nil
	}
	return p.flush()
}

func (p *publisher) flush() error {
	if len(p.pending) == 0 {
		return nil
	}
	res, err := kafka.Produce(p.ctx, p.engine, p.topic, p.pending)
	p.pending = p.pending[:0]
	if err != nil {
		return err
	}
	if res != nil {
		p.sent += res.Sent
	}
	return nil
}
