package progressbar

import (
	"bytes"
	"strings"
	"testing"
)

func TestManualProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewManualProgressBar(&buf, "launch", 10, 4)

	for i := 0; i < 6; i++ {
		p.Increment()
	}
	if !p.Done() {
		t.Error("increment: bar should be complete")
	}

	p.Display()
	if !strings.Contains(buf.String(), "launch |") {
		t.Errorf("display: missing label in %q", buf.String())
	}
	if !strings.Contains(buf.String(), "100.00%") {
		t.Errorf("display: expected 100%% in %q", buf.String())
	}
}
