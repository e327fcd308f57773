package replay

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"parkrep/core/internal/actions"
	"parkrep/core/internal/logging"
	"parkrep/core/internal/park"
	"parkrep/core/internal/snapshots"
)

type notifierSpy struct {
	mu    sync.Mutex
	kinds []NotificationKind
}

func (n *notifierSpy) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, note.Kind)
}

func (n *notifierSpy) has(kind NotificationKind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, k := range n.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (n *notifierSpy) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.kinds)
}

type viewportSpy struct{ scrolls int }

func (v *viewportSpy) ScrollTo(park.Coords) { v.scrolls++ }

type offline struct{}

func (offline) ChecksumsAvailable() bool { return false }

type harness struct {
	park     *park.Park
	exec     *actions.Executor
	mgr      *Manager
	notes    *notifierSpy
	viewport *viewportSpy
	dir      string
}

func newHarness(t *testing.T, dir string, seed uint32, network NetworkStatus, opts ...Option) *harness {
	t.Helper()
	p := park.New("Test Park", seed)
	exec := actions.NewExecutor(p, logging.NewTestLogger())
	h := &harness{park: p, exec: exec, notes: &notifierSpy{}, viewport: &viewportSpy{}, dir: dir}
	base := []Option{
		WithReplayDir(dir),
		WithDesyncDir(filepath.Join(dir, "desync")),
		WithLogger(logging.NewTestLogger()),
		WithNetworkVersion("test-1"),
	}
	mgr, err := NewManager(Deps{
		World:     p,
		Park:      p,
		Executor:  exec,
		Checksums: p,
		Snapshots: snapshots.NewStore(p),
		Network:   network,
		Notifier:  h.notes,
		Viewport:  h.viewport,
	}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	exec.SetRecorder(mgr.AddGameAction)
	h.mgr = mgr
	return h
}

// step runs one host tick: manager update, live actions, then the simulation.
func (h *harness) step(t *testing.T, live ...actions.Action) {
	t.Helper()
	if err := h.mgr.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, a := range live {
		h.exec.Execute(a)
	}
	h.park.Tick()
}

func (h *harness) runUntilIdle(t *testing.T, limit int) {
	t.Helper()
	for i := 0; h.mgr.Mode() != ModeIdle; i++ {
		if i >= limit {
			t.Fatalf("manager still %s after %d ticks", h.mgr.Mode(), limit)
		}
		h.step(t)
	}
}

// recordDemo records a 20 tick session with actions on three ticks.
func recordDemo(t *testing.T, dir, name string) *harness {
	t.Helper()
	h := newHarness(t, dir, 1234, nil)
	h.park.SetCurrentTick(100)
	for _, pos := range [][2]int32{{200, 200}, {640, 480}} {
		if _, err := h.park.SpawnEntity(park.KindGuest, pos[0], pos[1]); err != nil {
			t.Fatalf("SpawnEntity: %v", err)
		}
	}
	if err := h.mgr.StartRecording(name, 20, RecordNormal); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	for h.mgr.Mode() == ModeRecording {
		switch h.park.CurrentTick() {
		case 102:
			h.step(t, &actions.GuestSpawn{X: 300, Y: 900})
		case 110:
			h.step(t, &actions.LandSetHeight{TileX: 3, TileY: 3, Height: 40}, &actions.ParkSetEntranceFee{Fee: 15})
		case 115:
			h.step(t, &actions.GuestSpawn{Staff: true, X: 1000, Y: 1000})
		default:
			h.step(t)
		}
	}
	return h
}

func TestRecordThenPlaybackStaysInSync(t *testing.T) {
	dir := t.TempDir()
	recorder := recordDemo(t, dir, "demo")
	if !recorder.notes.has(NotifyRecordingStarted) || !recorder.notes.has(NotifyRecordingSaved) {
		t.Fatalf("expected recording notifications, got %v", recorder.notes.kinds)
	}

	rec, err := ReadFile(filepath.Join(dir, "demo.parkrep"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if rec.TickStart != 100 || rec.TickEnd != 120 || rec.Commands.Len() != 4 {
		t.Fatalf("unexpected recording %+v", rec.Info())
	}
	if len(rec.Checksums) != 21 || len(rec.Snapshots) != 2 {
		t.Fatalf("expected 21 checksums and 2 snapshots, got %d and %d", len(rec.Checksums), len(rec.Snapshots))
	}

	//1.- Play back into a park seeded differently; the embedded park must take over.
	player := newHarness(t, dir, 99, nil)
	if err := player.mgr.StartPlayback("demo", PlaybackOptions{}); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	if player.park.CurrentTick() != 100 {
		t.Fatalf("playback should rewind the tick to 100, got %d", player.park.CurrentTick())
	}
	player.runUntilIdle(t, 50)
	if player.mgr.IsPlaybackStateMismatching() {
		t.Fatalf("playback desynced, report %s", player.mgr.DesyncReport())
	}
	if player.park.EntitiesChecksum() != recorder.park.EntitiesChecksum() {
		t.Fatalf("final world differs between recording and playback")
	}
	if player.park.EntranceFee() != 15 || len(player.park.Entities()) != 4 {
		t.Fatalf("replayed actions missing: fee=%d entities=%d", player.park.EntranceFee(), len(player.park.Entities()))
	}
	if player.viewport.scrolls == 0 {
		t.Fatalf("expected viewport to follow replayed actions")
	}
	if !player.notes.has(NotifyPlaybackFinished) {
		t.Fatalf("expected playback finished notification, got %v", player.notes.kinds)
	}
}

func TestPlaybackSkipsCommandsBeforeStart(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir, "demo")
	path := filepath.Join(dir, "demo.parkrep")
	rec, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	//1.- A command scheduled before the first played tick can never become due.
	rec.Commands.Append(rec.TickStart-10, &actions.ParkSetEntranceFee{Fee: 99})
	if err := WriteFile(path, rec, 3); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	player := newHarness(t, dir, 99, nil)
	if err := player.mgr.StartPlayback("demo", PlaybackOptions{}); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	player.runUntilIdle(t, 50)
	if player.park.EntranceFee() != 15 || len(player.park.Entities()) != 4 {
		t.Fatalf("later commands must still run: fee=%d entities=%d", player.park.EntranceFee(), len(player.park.Entities()))
	}
	if player.mgr.IsPlaybackStateMismatching() {
		t.Fatalf("skipping the stale command should not desync, report %s", player.mgr.DesyncReport())
	}
}

func TestPlaybackMismatchIsSticky(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir, "demo")

	player := newHarness(t, dir, 5, nil)
	if err := player.mgr.StartPlayback("demo", PlaybackOptions{}); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	for i := 0; i < 3; i++ {
		player.step(t)
	}
	//1.- Nudge a guest so the next checksum diverges.
	if !player.park.MutateEntity(0, func(e *park.Entity) { e.Energy -= 7 }) {
		t.Fatalf("expected guest 0 to exist")
	}
	player.step(t)
	if !player.mgr.IsPlaybackStateMismatching() || player.mgr.FaultyChecksumIndex() != 3 {
		t.Fatalf("expected mismatch at index 3, got %v/%d", player.mgr.IsPlaybackStateMismatching(), player.mgr.FaultyChecksumIndex())
	}
	report := player.mgr.DesyncReport()
	if report == "" {
		t.Fatalf("expected a desync report")
	}
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("desync report missing: %v", err)
	}

	player.runUntilIdle(t, 50)
	if !player.mgr.IsPlaybackStateMismatching() || player.mgr.FaultyChecksumIndex() != 3 {
		t.Fatalf("mismatch flag must stay set for the rest of the playback")
	}
	if !player.notes.has(NotifyPlaybackDesync) {
		t.Fatalf("expected desync notification")
	}

	//2.- A new playback clears the flag.
	if err := player.mgr.StartPlayback("demo", PlaybackOptions{}); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	if player.mgr.IsPlaybackStateMismatching() || player.mgr.FaultyChecksumIndex() != -1 {
		t.Fatalf("new playback must reset the mismatch state")
	}
	player.runUntilIdle(t, 50)
	if player.mgr.IsPlaybackStateMismatching() {
		t.Fatalf("clean playback reported a mismatch")
	}
}

func TestSilentPlaybackSkipsChecksumsAndFocus(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir, "demo")

	player := newHarness(t, dir, 5, nil)
	if err := player.mgr.StartPlayback("demo", PlaybackOptions{Silent: true}); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	player.step(t)
	player.park.MutateEntity(1, func(e *park.Entity) { e.Cash += 3 })
	for i := 0; i < 5; i++ {
		player.step(t)
	}
	if player.mgr.IsPlaybackStateMismatching() {
		t.Fatalf("silent playback must not compare checksums")
	}
	player.runUntilIdle(t, 50)
	if player.viewport.scrolls != 0 || player.notes.count() != 0 {
		t.Fatalf("silent playback must not scroll or notify: scrolls=%d notes=%d", player.viewport.scrolls, player.notes.count())
	}
}

func TestOfflineNetworkSkipsChecksums(t *testing.T) {
	h := newHarness(t, t.TempDir(), 1, offline{})
	if err := h.mgr.StartRecording("offline", 5, RecordNormal); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.runUntilIdle(t, 10)
	rec, err := ReadFile(filepath.Join(h.dir, "offline.parkrep"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rec.Checksums) != 0 {
		t.Fatalf("expected no checksums while offline, got %d", len(rec.Checksums))
	}
}

func TestSilentRecordingUsesSparseChecksums(t *testing.T) {
	h := newHarness(t, t.TempDir(), 1, nil)
	if err := h.mgr.StartRecording("background", 1000, RecordSilent); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	for i := 0; i < 81; i++ {
		h.step(t)
	}
	if err := h.mgr.StopRecording(false); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	rec, err := ReadFile(filepath.Join(h.dir, "background.parkrep"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := []uint32{0, 40, 80, 81}
	if len(rec.Checksums) != len(want) {
		t.Fatalf("expected checksum ticks %v, got %+v", want, rec.Checksums)
	}
	for i, tick := range want {
		if rec.Checksums[i].Tick != tick {
			t.Fatalf("checksum %d at tick %d, want %d", i, rec.Checksums[i].Tick, tick)
		}
	}
	if h.notes.count() != 0 {
		t.Fatalf("silent recordings must not notify, got %v", h.notes.kinds)
	}
}

func TestStartRecordingConflicts(t *testing.T) {
	h := newHarness(t, t.TempDir(), 1, nil)
	if err := h.mgr.StartRecording("background", 100, RecordSilent); err != nil {
		t.Fatalf("StartRecording silent: %v", err)
	}
	if err := h.mgr.StartRecording("again", 100, RecordSilent); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for a second silent recording, got %v", err)
	}
	//1.- An explicit recording replaces the silent one without writing it.
	if err := h.mgr.StartRecording("explicit", 100, RecordNormal); err != nil {
		t.Fatalf("StartRecording normal: %v", err)
	}
	if info, ok := h.mgr.CurrentReplayInfo(); !ok || info.Name != "explicit" {
		t.Fatalf("expected explicit recording to be current, got %+v", info)
	}
	if err := h.mgr.StartRecording("other", 100, RecordNormal); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while recording, got %v", err)
	}
	if err := h.mgr.StopRecording(true); err != nil {
		t.Fatalf("StopRecording discard: %v", err)
	}
	if h.mgr.Mode() != ModeIdle {
		t.Fatalf("expected idle after discard, got %s", h.mgr.Mode())
	}
	for _, name := range []string{"background.parkrep", "explicit.parkrep"} {
		if _, err := os.Stat(filepath.Join(h.dir, name)); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("discarded recording %s should not exist", name)
		}
	}
}

func TestRecordingRejectedDuringPlayback(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir, "demo")
	player := newHarness(t, dir, 1, nil)
	if err := player.mgr.StartPlayback("demo", PlaybackOptions{}); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	if err := player.mgr.StartRecording("nested", 10, RecordNormal); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := player.mgr.StartPlayback("demo", PlaybackOptions{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for a second playback, got %v", err)
	}
}

func TestStartPlaybackMissingFile(t *testing.T) {
	h := newHarness(t, t.TempDir(), 1, nil)
	if err := h.mgr.StartPlayback("nothing-here", PlaybackOptions{}); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if h.mgr.Mode() != ModeIdle {
		t.Fatalf("failed playback must leave the manager idle")
	}
}

func TestNormaliseSqueezesIdleTicks(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir, "demo")

	h := newHarness(t, dir, 3, nil)
	if err := h.mgr.NormaliseReplay("demo", "demo-normal"); err != nil {
		t.Fatalf("NormaliseReplay: %v", err)
	}
	if !h.mgr.IsNormalising() || !h.mgr.IsPlaying() || !h.mgr.IsRecording() {
		t.Fatalf("normalising should hold both a playback and a recording")
	}
	h.runUntilIdle(t, 20)
	if h.mgr.IsPlaying() || h.mgr.IsRecording() {
		t.Fatalf("normalisation must close both halves")
	}

	out, err := ReadFile(filepath.Join(dir, "demo-normal.parkrep"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	cmds := out.Commands.Commands()
	if len(cmds) != 4 {
		t.Fatalf("expected 4 re-recorded commands, got %d", len(cmds))
	}
	for i, cmd := range cmds {
		if cmd.Tick != 100+uint32(i) {
			t.Fatalf("command %d at tick %d, want %d", i, cmd.Tick, 100+i)
		}
		if cmd.Action.Flags()&actions.FlagReplay != 0 {
			t.Fatalf("replay flag must not be persisted")
		}
	}
	if out.TickStart != 100 || out.TickEnd != 103 {
		t.Fatalf("unexpected normalised bounds %d-%d", out.TickStart, out.TickEnd)
	}
	if !h.notes.has(NotifyNormaliseFinished) || h.notes.has(NotifyPlaybackStarted) {
		t.Fatalf("unexpected notifications %v", h.notes.kinds)
	}
}

func TestNormaliseMissingInput(t *testing.T) {
	dir := t.TempDir()
	recordDemo(t, dir, "demo")
	h := newHarness(t, dir, 3, nil)
	if err := h.mgr.NormaliseReplay("missing", "out"); err == nil {
		t.Fatalf("expected missing input to fail")
	}
	if h.mgr.Mode() != ModeIdle || h.mgr.IsPlaying() {
		t.Fatalf("failed normalisation must leave the manager idle")
	}
}

func TestAsyncWritesAreJoinedByWait(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir, 1, nil, WithAsyncWrites(true))
	if err := h.mgr.StartRecording("async", 3, RecordNormal); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.runUntilIdle(t, 10)
	if err := h.mgr.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if _, err := ReadInfo(filepath.Join(dir, "async.parkrep")); err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}

	//1.- A path under a regular file cannot be created; the failure surfaces from Wait.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := h.mgr.StartRecording(filepath.Join(blocker, "broken.parkrep"), 3, RecordNormal); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := h.mgr.StopRecording(false); err != nil {
		t.Fatalf("async StopRecording should not fail inline: %v", err)
	}
	if err := h.mgr.Wait(); err == nil {
		t.Fatalf("expected Wait to report the failed write")
	}
	if !h.notes.has(NotifyRecordingFailed) {
		t.Fatalf("expected a failure notification")
	}
}

func TestAddGameActionWithoutRecordingIsNoop(t *testing.T) {
	h := newHarness(t, t.TempDir(), 1, nil)
	h.mgr.AddGameAction(0, &actions.ParkSetName{Name: "x"})
	if _, ok := h.mgr.CurrentReplayInfo(); ok {
		t.Fatalf("no session should be active")
	}
}
