package metadata

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"

	"github.com/dotdot-dev/mediamaster/internal/log"
)

// exiftoolTimeout bounds each external extraction. A call that exceeds it
// is treated as "no data" and the tool is not consulted again this run.
const exiftoolTimeout = 10 * time.Second

// exiftoolClient wraps a lazily started exiftool process. A missing binary
// is non-fatal: fields() then always returns nil and the cascade continues.
type exiftoolClient struct {
	mu          sync.Mutex
	et          *exiftool.Exiftool
	unavailable bool
	logger      *log.Logger
}

func newExiftoolClient(logger *log.Logger) *exiftoolClient {
	return &exiftoolClient{logger: logger}
}

func (c *exiftoolClient) ensure() *exiftool.Exiftool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unavailable {
		return nil
	}
	if c.et != nil {
		return c.et
	}

	et, err := exiftool.NewExiftool()
	if err != nil {
		c.logger.Debug("exiftool unavailable: %v", err)
		c.unavailable = true
		return nil
	}
	c.et = et
	return c.et
}

// markUnavailable abandons the running process without closing it: a
// timed-out extraction goroutine may still be reading from it, and the
// orphan exits with the parent. Close must never touch it afterwards.
func (c *exiftoolClient) markUnavailable() {
	c.mu.Lock()
	c.unavailable = true
	c.et = nil
	c.mu.Unlock()
}

// fields extracts all tags of a file as trimmed strings. Returns nil on
// any failure or timeout.
func (c *exiftoolClient) fields(path string) map[string]string {
	et := c.ensure()
	if et == nil {
		return nil
	}

	done := make(chan map[string]string, 1)
	go func() {
		metas := et.ExtractMetadata(path)
		if len(metas) == 0 || metas[0].Err != nil {
			done <- nil
			return
		}
		out := make(map[string]string, len(metas[0].Fields))
		for k, v := range metas[0].Fields {
			if v == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprintf("%v", v))
			if s != "" {
				out[k] = s
			}
		}
		done <- out
	}()

	select {
	case m := <-done:
		return m
	case <-time.After(exiftoolTimeout):
		c.logger.Debug("exiftool timed out on %s", path)
		c.markUnavailable()
		return nil
	}
}

func (c *exiftoolClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.et != nil {
		c.et.Close()
		c.et = nil
	}
}
