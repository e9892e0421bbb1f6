package metadata

import (
	"testing"

	"github.com/barasher/go-exiftool"

	"github.com/dotdot-dev/mediamaster/internal/log"
)

func TestExiftoolClient_MarkUnavailableDropsHandle(t *testing.T) {
	// After a timeout the extraction goroutine may still be using the
	// process, so abandoning must drop the handle without closing it and
	// leave Close with nothing to touch.
	c := newExiftoolClient(log.Discard())
	c.et = &exiftool.Exiftool{}

	c.markUnavailable()

	if c.et != nil {
		t.Error("abandoned handle not dropped")
	}
	if !c.unavailable {
		t.Error("client not marked unavailable")
	}
	if m := c.fields("/sd/photo.jpg"); m != nil {
		t.Errorf("fields must return nil once unavailable, got %v", m)
	}
	c.Close() // must be a no-op, not a close on the abandoned process
}

func TestExiftoolClient_CloseWithoutStart(t *testing.T) {
	c := newExiftoolClient(log.Discard())
	c.Close()
}
