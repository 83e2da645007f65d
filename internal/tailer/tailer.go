package tailer

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"

	"github.com/telemetrykit/lokibuf/internal/logging"
)

// Appender receives the entries produced from tailed files. The buffer
// engine satisfies it.
type Appender interface {
	Append(entry logging.LogEntry)
}

type Config struct {
	// LogRootPath is walked recursively for *.log files.
	LogRootPath  string
	ScanInterval time.Duration
	Workers      int
	// FileQueueSize bounds the discovery-to-worker queue.
	FileQueueSize int
	// DefaultLevel is used when a line carries no recognizable level token.
	DefaultLevel logging.Level
	// If > 0, stop tailing a file after this period without new lines.
	FileIdleTimeout time.Duration
}

// Service discovers log files under a root and tails them with a fixed pool
// of workers, turning each line into an entry for the appender.
type Service struct {
	config    Config
	appender  Appender
	fileQueue chan string
	ctx       context.Context
	cancel    context.CancelFunc
	workersWg sync.WaitGroup
	scannerWg sync.WaitGroup

	mu        sync.Mutex
	seenFiles map[string]struct{}
}

func New(ctx context.Context, config Config, appender Appender) *Service {
	nCtx, cancel := context.WithCancel(ctx)
	return &Service{
		config:    config,
		appender:  appender,
		fileQueue: make(chan string, config.FileQueueSize),
		ctx:       nCtx,
		cancel:    cancel,
		seenFiles: make(map[string]struct{}),
	}
}

func (s *Service) Start() {
	log.Printf("Starting tailer: root=%s, workers=%d", s.config.LogRootPath, s.config.Workers)

	for i := 0; i < s.config.Workers; i++ {
		s.workersWg.Add(1)
		go s.worker(i)
	}

	s.scannerWg.Add(1)
	go s.scanner()
}

func (s *Service) Stop() {
	s.cancel()
	s.scannerWg.Wait()
	close(s.fileQueue)
	s.workersWg.Wait()
	log.Printf("Tailer stopped")
}

func (s *Service) scanner() {
	defer s.scannerWg.Done()

	s.scanFiles()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scanFiles()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) scanFiles() {
	files, err := s.discoverLogFiles()
	if err != nil {
		log.Printf("Error discovering log files: %v", err)
		return
	}

	for _, file := range files {
		s.mu.Lock()
		if _, ok := s.seenFiles[file]; ok {
			s.mu.Unlock()
			continue
		}
		s.seenFiles[file] = struct{}{}
		s.mu.Unlock()

		select {
		case s.fileQueue <- file:
		case <-s.ctx.Done():
			return
		default:
			log.Printf("File queue full (%d/%d), skipping %s",
				len(s.fileQueue), cap(s.fileQueue), file)
			s.forget(file)
		}
	}
}

func (s *Service) forget(file string) {
	s.mu.Lock()
	delete(s.seenFiles, file)
	s.mu.Unlock()
}

func (s *Service) worker(id int) {
	defer s.workersWg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Tailer worker %d panicked: %v", id, r)
		}
	}()

	for {
		select {
		case filePath, ok := <-s.fileQueue:
			if !ok {
				return
			}
			s.processFile(filePath)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) processFile(filePath string) {
	defer s.forget(filePath)

	t, err := tail.TailFile(filePath, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		log.Printf("Failed to tail file %s: %v", filePath, err)
		return
	}
	defer t.Cleanup()

	checkTicker := time.NewTicker(1 * time.Second)
	defer checkTicker.Stop()

	lastActivity := time.Now()

	for {
		select {
		case line := <-t.Lines:
			if line == nil {
				continue
			}
			if line.Err != nil {
				log.Printf("Error reading from %s: %v", filePath, line.Err)
				continue
			}

			s.appender.Append(logging.NewEntry(
				detectLevel(line.Text, s.config.DefaultLevel),
				line.Text,
				map[string]string{"file": filepath.Base(filePath)},
			))
			lastActivity = time.Now()

		case <-checkTicker.C:
			// waking up from blocking line reading to check context status and idle timeout
			if s.config.FileIdleTimeout > 0 && time.Since(lastActivity) > s.config.FileIdleTimeout {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) discoverLogFiles() ([]string, error) {
	var logFiles []string

	err := filepath.Walk(s.config.LogRootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Error accessing path %s: %v", path, err)
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".log") {
			logFiles = append(logFiles, path)
		}
		return nil
	})

	return logFiles, err
}

// detectLevel looks for a level token in the first few fields of a line,
// matching both "error" and bracketed "[ERROR]" styles.
func detectLevel(line string, fallback logging.Level) logging.Level {
	fields := strings.Fields(line)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	for _, field := range fields {
		token := strings.ToLower(strings.Trim(field, "[]:"))
		if level, err := logging.ParseLevel(token); err == nil {
			return level
		}
	}
	return fallback
}
