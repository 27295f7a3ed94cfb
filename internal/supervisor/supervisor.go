package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/sensorhub/internal/telemetry"
)

// Runner — долгоживущий компонент с циклом до отмены ctx.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc — адаптер функции к Runner.
type RunnerFunc func(ctx context.Context) error

// Run вызывает f(ctx).
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Closer освобождает долговременное хранилище.
type Closer interface {
	Close()
}

const defaultStatusInterval = 30 * time.Second

// Supervisor — владелец всех долгоживущих контекстов выполнения.
//
// Запускает мультиплексор, цикл опроса, очистку и (опционально) зеркало,
// у каждого собственная функция отмены. Stop останавливает их строго
// по порядку, дожидаясь завершения каждого, и затем закрывает хранилище.
type Supervisor struct {
	stages  []*stage
	storage Closer

	statusInterval time.Duration
	status         func() []any

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}

	statusCancel context.CancelFunc
	statusDone   chan struct{}

	logger *slog.Logger
}

// stage — один управляемый контекст выполнения.
type stage struct {
	name   string
	runner Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Config — конфигурация Supervisor.
type Config struct {
	Multiplexer Runner // обязателен
	Acquisition Runner // обязателен
	Sweeper     Runner // опционально
	Mirror      Runner // опционально
	Storage     Closer // опционально

	// StatusInterval — период отладочной строки состояния (default: 30s).
	StatusInterval time.Duration

	// Status возвращает атрибуты для строки состояния.
	Status func() []any

	Logger *slog.Logger
}

// New создаёт новый Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Multiplexer == nil {
		return nil, errors.New("supervisor: multiplexer is required")
	}
	if cfg.Acquisition == nil {
		return nil, errors.New("supervisor: acquisition is required")
	}

	// Порядок stages — порядок остановки
	stages := []*stage{
		{name: "multiplexer", runner: cfg.Multiplexer},
		{name: "acquisition", runner: cfg.Acquisition},
	}
	if cfg.Sweeper != nil {
		stages = append(stages, &stage{name: "sweeper", runner: cfg.Sweeper})
	}
	if cfg.Mirror != nil {
		stages = append(stages, &stage{name: "mirror", runner: cfg.Mirror})
	}

	statusInterval := cfg.StatusInterval
	if statusInterval <= 0 {
		statusInterval = defaultStatusInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		stages:         stages,
		storage:        cfg.Storage,
		statusInterval: statusInterval,
		status:         cfg.Status,
		done:           make(chan struct{}),
		logger:         telemetry.WithComponent(logger, "supervisor"),
	}, nil
}

// Start запускает все контексты выполнения.
//
// Контексты стадий не наследуют отмену ctx: каждая останавливается только
// своей функцией отмены. Отмена ctx запускает Stop, то есть ту же
// остановку по порядку.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	base := context.WithoutCancel(ctx)

	// Запуск в обратном порядке: потребители готовы раньше производителя
	for i := len(s.stages) - 1; i >= 0; i-- {
		s.launch(base, s.stages[i])
	}

	statusCtx, cancel := context.WithCancel(base)
	s.statusCancel = cancel
	s.statusDone = make(chan struct{})
	go s.statusLoop(statusCtx)

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested", "cause", context.Cause(ctx))
			s.Stop()
		case <-s.done:
		}
	}()

	s.logger.Info("system running", "stages", len(s.stages))
	return nil
}

func (s *Supervisor) launch(parent context.Context, st *stage) {
	ctx, cancel := context.WithCancel(parent)
	st.cancel = cancel
	st.done = make(chan struct{})

	go func() {
		defer close(st.done)

		err := st.runner.Run(ctx)

		// Выход без запроса остановки — аномалия
		if ctx.Err() == nil {
			s.logger.Error("stage exited unexpectedly", "stage", st.name, "error", err)
			return
		}
		if err != nil {
			s.logger.Warn("stage stopped with error", "stage", st.name, "error", err)
		}
	}()
}

// statusLoop периодически пишет строку состояния.
func (s *Supervisor) statusLoop(ctx context.Context) {
	defer close(s.statusDone)

	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var attrs []any
			if s.status != nil {
				attrs = s.status()
			}
			s.logger.Debug("system running", attrs...)
		}
	}
}

// Stop останавливает контексты выполнения по порядку:
// мультиплексор, цикл опроса, очистка, зеркало. Затем закрывает хранилище.
// Повторный вызов дожидается завершения первого. До Start ничего не делает.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info("stopping system")

	s.statusCancel()
	<-s.statusDone

	for _, st := range s.stages {
		start := time.Now()
		st.cancel()
		<-st.done
		s.logger.Info("stage stopped", "stage", st.name, "duration", time.Since(start))
	}

	if s.storage != nil {
		s.storage.Close()
		s.logger.Info("storage closed")
	}

	close(s.done)
	s.logger.Info("system stopped")
}

// Done закрывается после завершения Stop.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Wait блокируется до завершения Stop.
func (s *Supervisor) Wait() {
	<-s.done
}

// Exited возвращает канал, в который приходит имя каждого завершившегося
// контекста выполнения (штатно или аварийно). Вызывается после Start.
func (s *Supervisor) Exited() <-chan string {
	out := make(chan string, len(s.stages))
	for _, st := range s.stages {
		go func(st *stage) {
			if st.done == nil {
				return
			}
			<-st.done
			out <- st.name
		}(st)
	}
	return out
}
