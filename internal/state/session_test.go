package state

import (
	"testing"

	"github.com/danmuck/ircterm/internal/testutil/testlog"
)

func TestJoinPartIsIdempotent(t *testing.T) {
	testlog.Start(t)
	s := NewSession("alice")
	if d := s.JoinChannel("#Go"); d.Kind != DiffJoined || d.Channel != "#Go" {
		t.Fatalf("unexpected join diff: %+v", d)
	}
	if d := s.JoinChannel("#go"); d.Changed() {
		t.Fatalf("duplicate join should be a no-op: %+v", d)
	}
	if d := s.PartChannel("#GO"); d.Kind != DiffParted || d.Channel != "#Go" {
		t.Fatalf("unexpected part diff: %+v", d)
	}
	if d := s.PartChannel("#go"); d.Changed() {
		t.Fatalf("part of absent channel should be a no-op: %+v", d)
	}
}

func TestMemberLifecycle(t *testing.T) {
	testlog.Start(t)
	s := NewSession("alice")
	if d := s.UpsertMember("#x", "bob", ""); d.Changed() {
		t.Fatalf("upsert into unknown channel should be a no-op")
	}
	s.JoinChannel("#x")
	if d := s.UpsertMember("#x", "bob", ""); d.Kind != DiffMemberJoined {
		t.Fatalf("unexpected diff: %+v", d)
	}
	if d := s.UpsertMember("#x", "bob", "vo"); d.Kind != DiffMemberUpdated || d.Modes != "ov" {
		t.Fatalf("expected ranked modes ov, got %+v", d)
	}
	diffs := s.RenameMember("bob", "robert")
	if len(diffs) != 1 || diffs[0].OldNick != "bob" || diffs[0].Nick != "robert" {
		t.Fatalf("unexpected rename diffs: %+v", diffs)
	}
	ch, _ := s.Channel("#x")
	if m, ok := ch.Members["robert"]; !ok || m.Modes != "ov" {
		t.Fatalf("renamed member lost modes: %+v", ch.Members)
	}
	if d := s.RemoveMember("#x", "bob"); d.Changed() {
		t.Fatalf("removing stale nick should be a no-op")
	}
	if diffs := s.RemoveMemberEverywhere("ROBERT"); len(diffs) != 1 {
		t.Fatalf("unexpected quit diffs: %+v", diffs)
	}
}

func TestSyncNamesParsesPrefixes(t *testing.T) {
	testlog.Start(t)
	s := NewSession("alice")
	s.JoinChannel("#x")
	d := s.SyncNames("#x", []string{"@alice", "+@bob", "carol!c@host", ""})
	if d.Kind != DiffNames || len(d.Members) != 3 {
		t.Fatalf("unexpected names diff: %+v", d)
	}
	ch, _ := s.Channel("#x")
	if ch.Members["bob"].Modes != "ov" {
		t.Fatalf("multi-prefix not ranked: %+v", ch.Members["bob"])
	}
	if ch.Members["carol"].Nick != "carol" {
		t.Fatalf("userhost-in-names not stripped: %+v", ch.Members)
	}
	if again := s.SyncNames("#x", []string{"@alice"}); again.Changed() {
		t.Fatalf("repeat names should be a no-op")
	}
}

func TestApplyModeDelta(t *testing.T) {
	testlog.Start(t)
	s := NewSession("alice")
	s.JoinChannel("#x")
	s.UpsertMember("#x", "bob", "")
	changes := ParseModes(s.Support(), "+ontk-l+b", []string{"bob", "secret", "*!*@spam"})
	if len(changes) != 6 {
		t.Fatalf("unexpected parsed changes: %+v", changes)
	}
	d := s.ApplyModeDelta("#x", changes)
	if d.Kind != DiffModes {
		t.Fatalf("unexpected diff: %+v", d)
	}
	ch, _ := s.Channel("#x")
	if ch.Members["bob"].Modes != "o" {
		t.Fatalf("op not applied: %+v", ch.Members["bob"])
	}
	if ch.Modes['k'] != "secret" {
		t.Fatalf("key not stored: %+v", ch.Modes)
	}
	if _, ok := ch.Modes['b']; ok {
		t.Fatalf("list modes must not be stored as flags")
	}
	if got := ch.ModeString(); got != "+knt secret" {
		t.Fatalf("unexpected mode string: %q", got)
	}
	if again := s.ApplyModeDelta("#x", ParseModes(s.Support(), "+nt", nil)); again.Changed() {
		t.Fatalf("duplicate mode delta should be a no-op: %+v", again)
	}
}

func TestISupportChangesParsing(t *testing.T) {
	testlog.Start(t)
	s := NewSession("alice")
	d := s.ApplyISupport([]string{"PREFIX=(qaohv)~&@%+", "CHANTYPES=#!", "CASEMAPPING=ascii", "NETWORK=Example"})
	if d.Kind != DiffFeatures || len(d.Keys) != 4 {
		t.Fatalf("unexpected features diff: %+v", d)
	}
	if !s.IsChannel("!chan") || s.IsChannel("&chan") {
		t.Fatalf("CHANTYPES not applied")
	}
	if s.Support().Fold("[A]") != "[a]" {
		t.Fatalf("ascii casemapping should not fold brackets")
	}
	s.JoinChannel("#x")
	s.SyncNames("#x", []string{"~%bob"})
	ch, _ := s.Channel("#x")
	if ch.Members["bob"].Modes != "qh" {
		t.Fatalf("custom prefix not applied: %+v", ch.Members["bob"])
	}
	if d := s.ApplyISupport([]string{"-NETWORK", "-MISSING"}); len(d.Keys) != 1 {
		t.Fatalf("unexpected removal diff: %+v", d)
	}
}

func TestTopicAndSnapshotIsolation(t *testing.T) {
	testlog.Start(t)
	s := NewSession("alice")
	s.JoinChannel("#x")
	if d := s.SetTopic("#x", "hello", "bob"); d.Kind != DiffTopic {
		t.Fatalf("unexpected topic diff: %+v", d)
	}
	if d := s.SetTopic("#x", "hello", ""); d.Changed() {
		t.Fatalf("same topic should be a no-op")
	}
	snap := s.Snapshot()
	s.SetTopic("#x", "changed", "carol")
	if snap.Channels["#x"].Topic != "hello" {
		t.Fatalf("snapshot shares state with session")
	}
	if d := s.SetTopic("#absent", "t", ""); d.Changed() {
		t.Fatalf("topic for absent channel should be a no-op")
	}
}

func TestNickAndCaps(t *testing.T) {
	testlog.Start(t)
	s := NewSession("alice")
	if d := s.SetNick("alice"); d.Changed() {
		t.Fatalf("same nick should be a no-op")
	}
	if d := s.SetNick("alice_"); d.OldNick != "alice" {
		t.Fatalf("unexpected nick diff: %+v", d)
	}
	if !s.IsSelf("ALICE_") {
		t.Fatalf("IsSelf should fold case")
	}
	d := s.SetCaps(map[string]string{"sasl": "PLAIN", "multi-prefix": ""}, []string{"absent"})
	if len(d.Keys) != 2 {
		t.Fatalf("unexpected caps diff: %+v", d)
	}
	d = s.SetCaps(nil, []string{"sasl"})
	if len(d.Keys) != 1 || d.Keys[0] != "-sasl" {
		t.Fatalf("unexpected caps removal diff: %+v", d)
	}
	if got := s.SetUserModes("+iw-w"); got.Modes != "i" {
		t.Fatalf("unexpected user modes: %+v", got)
	}
}
