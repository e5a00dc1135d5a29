package notify

import (
	"testing"
)

func TestBuffer_KeepsNewestFirst(t *testing.T) {
	b := NewBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		b.Notify(Info(msg))
	}
	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	got := b.Recent(0)
	want := []string{"d", "c", "b"}
	for i, n := range got {
		if n.Message != want[i] {
			t.Errorf("Recent[%d] = %q, want %q", i, n.Message, want[i])
		}
		if n.At.IsZero() {
			t.Errorf("Recent[%d] has no timestamp", i)
		}
	}
	if len(b.Recent(1)) != 1 {
		t.Error("Recent(1) should return one notice")
	}
}

func TestMultiAndFunc(t *testing.T) {
	var got []Notice
	buf := NewBuffer(2)
	sink := Multi{buf, nil, Func(func(n Notice) { got = append(got, n) }), NewLogSink(nil)}

	sink.Notify(Blocking("cycle detected", "Fix input"))

	if len(got) != 1 || got[0].ActionLabel != "Fix input" || got[0].Level != LevelError {
		t.Fatalf("callback got %+v", got)
	}
	if got[0].DurationMs != 0 {
		t.Errorf("blocking notice duration = %d, want 0", got[0].DurationMs)
	}
	if buf.Len() != 1 {
		t.Errorf("buffer Len = %d, want 1", buf.Len())
	}
	Discard.Notify(Info("dropped"))
}
