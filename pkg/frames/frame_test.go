package frames

import "testing"

func TestMetaMergeAndClone(t *testing.T) {
	f := NewTextFrame("room1:alice", 42, "hello", map[string]string{
		MetaRoomID:   "room1",
		MetaLanguage: "en",
	})
	meta := f.Meta()
	if meta[MetaStreamID] != "room1:alice" {
		t.Fatalf("stream id not merged: %v", meta)
	}
	meta[MetaRoomID] = "mutated"
	if f.Meta()[MetaRoomID] != "room1" {
		t.Fatalf("meta clone leaked mutation")
	}
}

func TestPTSGenMonotonicPerStream(t *testing.T) {
	g := NewPTSGen()
	a1 := g.Next("a")
	a2 := g.Next("a")
	b1 := g.Next("b")
	if a2 <= a1 {
		t.Fatalf("pts not increasing: %d then %d", a1, a2)
	}
	if b1 != a1 {
		t.Fatalf("streams should count independently: %d vs %d", a1, b1)
	}
}

func TestAudioFramePoolRoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	f := NewAudioFrameFromPool("s", 1, data, 16000, 1, nil)
	if got := f.Data(); len(got) != len(data) {
		t.Fatalf("expected %d bytes, got %d", len(data), len(got))
	}
	if !ReleaseAudioFrame(f) {
		t.Fatalf("pooled frame should release")
	}
	plain := NewAudioFrame("s", 2, data, 16000, 1, nil)
	if ReleaseAudioFrame(plain) {
		t.Fatalf("unpooled frame should not release")
	}
}
