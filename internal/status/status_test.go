package status

import (
	"strings"
	"testing"
)

func TestNewTruncatesDetail(t *testing.T) {
	long := strings.Repeat("x", 200)
	s := New(FailedToOpen, long)
	if len(s.Detail) != maxDetailLen {
		t.Fatalf("len(Detail) = %d, want %d", len(s.Detail), maxDetailLen)
	}
}

func TestTextFormatting(t *testing.T) {
	cases := []struct {
		s    Status
		want string
	}{
		{New(Conflict, "Engine 2 LTC-in"), "CONFLICT: same device as Engine 2 LTC-in"},
		{New(FailedToOpen, ""), "FAILED TO OPEN"},
		{New(Running, ""), "RUNNING"},
	}
	for _, c := range cases {
		if got := c.s.Text(); got != c.want {
			t.Errorf("Text() = %q, want %q", got, c.want)
		}
	}
}
