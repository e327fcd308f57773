package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"parkrep/core/internal/actions"
	"parkrep/core/internal/checksum"
	"parkrep/core/internal/logging"
	"parkrep/core/internal/snapshots"
)

// Mode is the manager state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRecording
	ModePlaying
	// ModeNormalising replays a file while re-recording every executed action.
	ModeNormalising
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModePlaying:
		return "playing"
	case ModeNormalising:
		return "normalising"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// RecordType selects the checksum cadence and feedback of a recording.
type RecordType int

const (
	RecordNormal RecordType = iota
	// RecordSilent is a background recording with sparse checksums and no notifications.
	RecordSilent
)

func (t RecordType) String() string {
	if t == RecordSilent {
		return "silent"
	}
	return "normal"
}

// PlaybackOptions tunes a playback session.
type PlaybackOptions struct {
	// Silent skips checksum comparison, viewport focus and notifications.
	Silent bool
}

const (
	DefaultChecksumInterval       uint32 = 1
	DefaultSilentChecksumInterval uint32 = 40
	DefaultCompressionLevel              = 3
)

// Deps are the collaborators the manager drives. Network, Notifier, Viewport and
// Objects are optional.
type Deps struct {
	World     World
	Park      ParkIO
	Executor  Executor
	Checksums ChecksumProvider
	Snapshots SnapshotStore
	Network   NetworkStatus
	Notifier  Notifier
	Viewport  Viewport
	Objects   ObjectLoader
}

// Option customises a Manager.
type Option func(*Manager)

// WithReplayDir sets the directory bare replay names resolve against.
func WithReplayDir(dir string) Option { return func(m *Manager) { m.replayDir = dir } }

// WithDesyncDir sets where desync reports are written. Empty disables reports.
func WithDesyncDir(dir string) Option { return func(m *Manager) { m.desyncDir = dir } }

// WithNetworkVersion sets the protocol version stamped into recordings.
func WithNetworkVersion(version string) Option {
	return func(m *Manager) { m.networkVersion = version }
}

// WithChecksumIntervals sets the sampling cadence for normal and silent recordings.
func WithChecksumIntervals(normal, silent uint32) Option {
	return func(m *Manager) {
		if normal > 0 {
			m.normalInterval = normal
		}
		if silent > 0 {
			m.silentInterval = silent
		}
	}
}

// WithCompressionLevel sets the level used for the park export and the container.
func WithCompressionLevel(level int) Option { return func(m *Manager) { m.level = level } }

// WithAsyncWrites hands finished recordings to a background writer.
func WithAsyncWrites(enabled bool) Option { return func(m *Manager) { m.async = enabled } }

// WithLogger overrides the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.log = logger
		}
	}
}

// WithClock overrides the wall clock used for timestamps and report names.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithSaveHook registers a callback invoked after a recording is written.
func WithSaveHook(fn func(Info)) Option { return func(m *Manager) { m.onSaved = fn } }

// WithDesyncHook registers a callback invoked when a playback first desyncs.
func WithDesyncHook(fn func(file string, tick uint32)) Option {
	return func(m *Manager) { m.onDesync = fn }
}

type recordingSession struct {
	data         *RecordData
	kind         RecordType
	interval     uint32
	nextChecksum uint32
}

type playbackSession struct {
	data          *RecordData
	opts          PlaybackOptions
	checksumIndex int
	cursor        uint32
}

// Manager records, plays back and normalises replays. All methods except Wait must be
// called from the tick thread.
type Manager struct {
	world     World
	park      ParkIO
	exec      Executor
	checksums ChecksumProvider
	snaps     SnapshotStore
	network   NetworkStatus
	notifier  Notifier
	viewport  Viewport
	objects   ObjectLoader

	replayDir      string
	desyncDir      string
	networkVersion string
	normalInterval uint32
	silentInterval uint32
	level          int
	async          bool
	log            *logging.Logger
	now            func() time.Time
	onSaved        func(Info)
	onDesync       func(string, uint32)

	mode      Mode
	recording *recordingSession
	playback  *playbackSession

	mismatch       bool
	faultyChecksum int
	desyncReport   string

	pending  sync.WaitGroup
	errMu    sync.Mutex
	asyncErr []error
}

// NewManager wires a manager to its collaborators.
func NewManager(deps Deps, opts ...Option) (*Manager, error) {
	if deps.World == nil || deps.Park == nil || deps.Executor == nil || deps.Checksums == nil || deps.Snapshots == nil {
		return nil, fmt.Errorf("replay manager requires world, park, executor, checksums and snapshots")
	}
	m := &Manager{
		world:          deps.World,
		park:           deps.Park,
		exec:           deps.Executor,
		checksums:      deps.Checksums,
		snaps:          deps.Snapshots,
		network:        deps.Network,
		notifier:       deps.Notifier,
		viewport:       deps.Viewport,
		objects:        deps.Objects,
		replayDir:      ".",
		normalInterval: DefaultChecksumInterval,
		silentInterval: DefaultSilentChecksumInterval,
		level:          DefaultCompressionLevel,
		log:            logging.L(),
		now:            time.Now,
		faultyChecksum: -1,
	}
	if m.network == nil {
		m.network = alwaysOnline{}
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Mode reports the current state.
func (m *Manager) Mode() Mode { return m.mode }

// IsRecording reports whether a recording sink is open, including inside normalisation.
func (m *Manager) IsRecording() bool { return m.recording != nil }

// IsPlaying reports whether a playback source is open, including inside normalisation.
func (m *Manager) IsPlaying() bool { return m.playback != nil }

// IsNormalising reports whether a normalisation run is in progress.
func (m *Manager) IsNormalising() bool { return m.mode == ModeNormalising }

// IsPlaybackStateMismatching reports whether the current or last playback desynced.
// The flag resets when a new playback starts.
func (m *Manager) IsPlaybackStateMismatching() bool { return m.mismatch }

// FaultyChecksumIndex returns the checksum track index of the first mismatch, or -1.
func (m *Manager) FaultyChecksumIndex() int { return m.faultyChecksum }

// DesyncReport returns the path of the report written for the last desync, if any.
func (m *Manager) DesyncReport() string { return m.desyncReport }

// CurrentReplayInfo summarises the active playback, or the active recording when no
// playback is open.
func (m *Manager) CurrentReplayInfo() (Info, bool) {
	switch {
	case m.playback != nil:
		return m.playback.data.Info(), true
	case m.recording != nil:
		return m.recording.data.Info(), true
	default:
		return Info{}, false
	}
}

// Wait blocks until background writes finish and returns their joined errors.
func (m *Manager) Wait() error {
	m.pending.Wait()
	m.errMu.Lock()
	defer m.errMu.Unlock()
	err := errors.Join(m.asyncErr...)
	m.asyncErr = nil
	return err
}

// Update advances the manager by one tick. The host calls it once per tick before the
// tick's live actions run. The returned error reports a recording that failed to save.
func (m *Manager) Update() error {
	if m.mode == ModeIdle {
		return nil
	}
	tick := m.world.CurrentTick()
	//1.- Sample the checksum track for any open recording.
	if m.recording != nil && tick >= m.recording.nextChecksum {
		m.sampleChecksum(tick)
	}
	switch m.mode {
	case ModeRecording:
		if tick >= m.recording.data.TickEnd {
			return m.StopRecording(false)
		}
	case ModePlaying:
		//2.- Verify state before replaying this tick's commands, matching the recording order.
		m.checkState(tick)
		m.replayCommands(tick)
		if tick >= m.playback.data.TickEnd {
			return m.StopPlayback()
		}
	case ModeNormalising:
		m.replayCommands(tick)
		if m.playback.data.Commands.Len() == 0 {
			return m.finishNormalising()
		}
	}
	return nil
}

func (m *Manager) sampleChecksum(tick uint32) {
	session := m.recording
	session.nextChecksum = saturatingAdd(tick, session.interval)
	if !m.network.ChecksumsAvailable() {
		return
	}
	session.data.AddChecksum(tick, m.checksums.EntitiesChecksum())
}

// AddGameAction records an executed action at tick. It is a no-op without a recording,
// so it can be installed as the executor's record hook permanently.
func (m *Manager) AddGameAction(tick uint32, action actions.Action) {
	if m.recording == nil || action == nil {
		return
	}
	clone, err := actions.Clone(action)
	if err != nil {
		m.log.Warn("replay action not recorded", logging.Uint32("tick", tick), logging.Error(err))
		return
	}
	m.recording.data.Commands.Append(tick, clone)
}

// StartRecording opens a recording named name that runs for at most maxTicks. An active
// silent recording is discarded when a different kind starts; any other active
// recording, or an active playback, makes the call fail with ErrBusy.
func (m *Manager) StartRecording(name string, maxTicks uint32, kind RecordType) error {
	if m.mode == ModePlaying {
		return fmt.Errorf("start recording during playback: %w", ErrBusy)
	}
	if m.recording != nil {
		if m.recording.kind != RecordSilent || kind == RecordSilent {
			return fmt.Errorf("recording %q already active: %w", m.recording.data.Name, ErrBusy)
		}
		//1.- Silent background recordings yield to explicit ones; their data is dropped.
		if err := m.StopRecording(true); err != nil {
			return err
		}
	}
	path := m.recordPath(name)
	tick := m.world.CurrentTick()
	rec := &RecordData{
		Magic:          Magic,
		Version:        Version,
		NetworkVersion: m.networkVersion,
		Name:           strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FilePath:       path,
		TimeRecorded:   uint64(m.now().Unix()),
		TickStart:      tick,
		TickEnd:        saturatingAdd(tick, maxTicks),
		Commands:       NewCommandLog(),
	}

	//2.- Embed the world as it is now so playback can restore it exactly.
	var parkData bytes.Buffer
	if err := m.park.ExportPark(&parkData, m.level); err != nil {
		return fmt.Errorf("export park: %w", err)
	}
	rec.ParkData = parkData.Bytes()
	params, err := m.park.ExportParameters()
	if err != nil {
		return fmt.Errorf("export parameters: %w", err)
	}
	rec.ParkParams = params
	cheats, err := m.park.ExportCheats()
	if err != nil {
		return fmt.Errorf("export cheats: %w", err)
	}
	rec.CheatData = cheats
	start, err := m.captureSnapshot()
	if err != nil {
		return fmt.Errorf("capture start snapshot: %w", err)
	}
	rec.Snapshots = append(rec.Snapshots, start)

	interval := m.normalInterval
	if kind == RecordSilent {
		interval = m.silentInterval
	}
	m.recording = &recordingSession{data: rec, kind: kind, interval: interval, nextChecksum: tick}
	if m.mode == ModeIdle {
		m.mode = ModeRecording
	}
	m.log.Info("replay recording started",
		logging.String("name", rec.Name),
		logging.String("file", path),
		logging.String("type", kind.String()),
		logging.Uint32("tick_start", rec.TickStart),
		logging.Uint32("tick_end", rec.TickEnd),
	)
	if kind != RecordSilent {
		m.notifier.Notify(Notification{Kind: NotifyRecordingStarted, Message: "Recording started", File: path, Tick: tick})
	}
	return nil
}

// StopRecording closes the active recording. With discard the data is dropped without
// any I/O; otherwise the end state is captured and the file written. Inside a
// normalisation only the recording half closes.
func (m *Manager) StopRecording(discard bool) error {
	session := m.recording
	if session == nil {
		return nil
	}
	m.recording = nil
	if m.mode == ModeRecording {
		m.mode = ModeIdle
	}
	rec := session.data
	if discard {
		m.log.Info("replay recording discarded", logging.String("name", rec.Name))
		return nil
	}

	tick := m.world.CurrentTick()
	if tick > rec.TickStart {
		rec.TickEnd = tick
	} else {
		rec.TickEnd = rec.TickStart
	}
	if m.network.ChecksumsAvailable() {
		rec.AddChecksum(tick, m.checksums.EntitiesChecksum())
	}
	end, err := m.captureSnapshot()
	if err != nil {
		m.log.Warn("replay end snapshot failed", logging.Error(err))
	} else {
		rec.Snapshots = append(rec.Snapshots, end)
	}

	//1.- From here the record belongs to the writer and is never touched by the tick thread.
	if m.async {
		m.pending.Add(1)
		go func() {
			defer m.pending.Done()
			if err := m.persist(rec, session.kind); err != nil {
				m.errMu.Lock()
				m.asyncErr = append(m.asyncErr, err)
				m.errMu.Unlock()
			}
		}()
		return nil
	}
	return m.persist(rec, session.kind)
}

func (m *Manager) persist(rec *RecordData, kind RecordType) error {
	if err := WriteFile(rec.FilePath, rec, m.level); err != nil {
		m.log.Error("replay save failed", logging.String("file", rec.FilePath), logging.Error(err))
		m.notifier.Notify(Notification{Kind: NotifyRecordingFailed, Message: err.Error(), File: rec.FilePath, Tick: rec.TickEnd})
		return fmt.Errorf("save replay %s: %w", rec.FilePath, err)
	}
	info := rec.Info()
	m.log.Info("replay recording saved",
		logging.String("file", rec.FilePath),
		logging.Int("commands", info.Commands),
		logging.Int("checksums", info.Checksums),
		logging.Uint32("ticks", info.Ticks),
	)
	if kind != RecordSilent {
		m.notifier.Notify(Notification{Kind: NotifyRecordingSaved, Message: "Replay saved", File: rec.FilePath, Tick: rec.TickEnd})
	}
	if m.onSaved != nil {
		m.onSaved(info)
	}
	return nil
}

// StartPlayback loads file into the live world and starts replaying it.
func (m *Manager) StartPlayback(file string, opts PlaybackOptions) error {
	if m.mode != ModeIdle {
		return fmt.Errorf("start playback while %s: %w", m.mode, ErrBusy)
	}
	if err := m.openPlayback(file, opts); err != nil {
		return err
	}
	m.mode = ModePlaying
	if !opts.Silent {
		m.notifier.Notify(Notification{Kind: NotifyPlaybackStarted, Message: "Playback started", File: m.playback.data.FilePath, Tick: m.playback.data.TickStart})
	}
	return nil
}

func (m *Manager) openPlayback(file string, opts PlaybackOptions) error {
	path, err := m.playbackPath(file)
	if err != nil {
		return err
	}
	rec, err := ReadFile(path)
	if err != nil {
		return err
	}
	//1.- Stage the embedded park, make its objects available, then swap it in.
	required, err := m.park.LoadPark(bytes.NewReader(rec.ParkData))
	if err != nil {
		return fmt.Errorf("load park from %s: %w", path, err)
	}
	if m.objects != nil {
		if err := m.objects.EnsureLoaded(required); err != nil {
			return fmt.Errorf("load objects for %s: %w", path, err)
		}
	}
	if err := m.park.ImportLoaded(); err != nil {
		return fmt.Errorf("import park from %s: %w", path, err)
	}
	if len(rec.ParkParams) > 0 {
		if err := m.park.ImportParameters(rec.ParkParams); err != nil {
			return fmt.Errorf("import parameters from %s: %w", path, err)
		}
	}
	if len(rec.CheatData) > 0 {
		if err := m.park.ImportCheats(rec.CheatData); err != nil {
			return fmt.Errorf("import cheats from %s: %w", path, err)
		}
	}
	m.world.SetCurrentTick(rec.TickStart)

	m.playback = &playbackSession{data: rec, opts: opts, cursor: rec.TickStart}
	m.mismatch = false
	m.faultyChecksum = -1
	m.desyncReport = ""

	//2.- The freshly imported world must match the snapshot taken when recording began.
	if len(rec.Snapshots) > 0 {
		m.compareSnapshot(rec.Snapshots[0], "start", false)
	}
	m.world.SetPaused(false)
	m.log.Info("replay playback started",
		logging.String("file", path),
		logging.Bool("silent", opts.Silent),
		logging.Uint32("tick_start", rec.TickStart),
		logging.Uint32("tick_end", rec.TickEnd),
		logging.Int("commands", rec.Commands.Len()),
	)
	return nil
}

// StopPlayback closes the active playback after checking the closing snapshot.
func (m *Manager) StopPlayback() error {
	session := m.playback
	if session == nil {
		return nil
	}
	if n := len(session.data.Snapshots); n > 1 {
		m.compareSnapshot(session.data.Snapshots[n-1], "end", true)
	}
	m.playback = nil
	m.log.Info("replay playback stopped",
		logging.String("file", session.data.FilePath),
		logging.Uint32("tick", m.world.CurrentTick()),
		logging.Bool("mismatch", m.mismatch),
	)
	if m.mode != ModePlaying {
		return nil
	}
	m.mode = ModeIdle
	if !session.opts.Silent {
		kind, message := NotifyPlaybackFinished, "Playback finished"
		if m.mismatch {
			kind, message = NotifyPlaybackDesync, "Playback finished out of sync"
		}
		m.notifier.Notify(Notification{Kind: kind, Message: message, File: session.data.FilePath, Tick: m.world.CurrentTick()})
	}
	return nil
}

// NormaliseReplay replays in while re-recording every executed action into out. Ticks
// without commands are squeezed out. The run ends by itself once the input log drains.
func (m *Manager) NormaliseReplay(in, out string) error {
	if m.mode != ModeIdle {
		return fmt.Errorf("normalise while %s: %w", m.mode, ErrBusy)
	}
	m.mode = ModeNormalising
	if err := m.openPlayback(in, PlaybackOptions{Silent: true}); err != nil {
		m.mode = ModeIdle
		return err
	}
	if err := m.StartRecording(out, MaxReplayTicks, RecordNormal); err != nil {
		m.playback = nil
		m.mode = ModeIdle
		return fmt.Errorf("start normalised recording: %w", err)
	}
	return nil
}

func (m *Manager) finishNormalising() error {
	out := ""
	if m.recording != nil {
		out = m.recording.data.FilePath
	}
	if err := m.StopPlayback(); err != nil {
		return err
	}
	err := m.StopRecording(false)
	m.mode = ModeIdle
	m.log.Info("replay normalisation finished", logging.String("file", out))
	m.notifier.Notify(Notification{Kind: NotifyNormaliseFinished, Message: "Replay normalised", File: out, Tick: m.world.CurrentTick()})
	return err
}

func (m *Manager) checkState(tick uint32) {
	session := m.playback
	if session.opts.Silent || !m.network.ChecksumsAvailable() {
		return
	}
	track := session.data.Checksums
	for session.checksumIndex < len(track) && track[session.checksumIndex].Tick < tick {
		session.checksumIndex++
	}
	if session.checksumIndex >= len(track) || track[session.checksumIndex].Tick != tick {
		return
	}
	expected := track[session.checksumIndex]
	index := session.checksumIndex
	session.checksumIndex++
	actual := m.checksums.EntitiesChecksum()
	if actual.Equal(expected.Digest) {
		return
	}
	m.log.Warn("replay checksum mismatch",
		logging.Uint32("tick", tick),
		logging.Int("index", index),
		logging.String("expected", expected.Digest.String()),
		logging.String("actual", actual.String()),
	)
	if m.mismatch {
		return
	}
	//1.- Only the first divergence is reported; later ones follow from it.
	m.mismatch = true
	m.faultyChecksum = index
	m.reportDesync(tick, index, expected.Digest, actual)
}

func (m *Manager) reportDesync(tick uint32, index int, expected, actual checksum.Digest) {
	session := m.playback
	if m.desyncDir != "" {
		live := m.snaps.CreateSnapshot()
		m.snaps.Capture(live)
		m.snaps.Link(live, tick, m.world.RandomSeed())
		path := filepath.Join(m.desyncDir, DesyncReportName(m.now(), tick, ""))
		err := writeDesyncReport(path, desyncReport{
			Replay:   session.data.Name,
			File:     session.data.FilePath,
			Tick:     tick,
			Index:    index,
			Expected: expected,
			Actual:   actual,
			Live:     live,
		})
		if err != nil {
			m.log.Warn("replay desync report failed", logging.Error(err))
		} else {
			m.desyncReport = path
			m.log.Info("replay desync report written", logging.String("path", path))
		}
	}
	m.notifier.Notify(Notification{Kind: NotifyPlaybackDesync, Message: "Replay out of sync", File: session.data.FilePath, Tick: tick})
	if m.onDesync != nil {
		m.onDesync(session.data.FilePath, tick)
	}
}

func (m *Manager) replayCommands(tick uint32) {
	session := m.playback
	log := session.data.Commands
	if m.mode == ModePlaying {
		for {
			cmd, ok := log.popStale(tick)
			if !ok {
				break
			}
			m.log.Warn("replay command skipped",
				logging.Uint32("tick", tick),
				logging.Uint32("command_tick", cmd.Tick),
				logging.Uint32("index", cmd.Index),
			)
		}
	}
	mode := DueStrict
	if m.mode == ModeNormalising {
		mode = DueCursor
	}
	for {
		cmd, ok := log.PopDue(tick, session.cursor, mode)
		if !ok {
			return
		}
		action := cmd.Action
		action.SetFlags(action.Flags() | actions.FlagReplay)
		result := m.exec.Execute(action)
		if !result.OK() {
			m.log.Debug("replayed action failed",
				logging.Uint32("tick", tick),
				logging.Uint32("index", cmd.Index),
				logging.String("status", result.Status.String()),
			)
		}
		if !result.Position.IsNull() && !session.opts.Silent && m.viewport != nil {
			m.viewport.ScrollTo(result.Position)
		}
		if mode == DueCursor {
			session.cursor = tick + 1
		}
	}
}

func (m *Manager) captureSnapshot() ([]byte, error) {
	snap := m.snaps.CreateSnapshot()
	m.snaps.Capture(snap)
	m.snaps.Link(snap, m.world.CurrentTick(), m.world.RandomSeed())
	return m.snaps.Serialise(snap)
}

// compareSnapshot checks a recorded snapshot against the live world. When sameTick is
// set the comparison only runs if the live tick matches the recorded one.
func (m *Manager) compareSnapshot(blob []byte, label string, sameTick bool) {
	recorded, err := m.snaps.Deserialise(blob)
	if err != nil {
		m.log.Warn("replay snapshot unreadable", logging.String("snapshot", label), logging.Error(err))
		return
	}
	tick := m.world.CurrentTick()
	if sameTick && recorded.Tick != tick {
		return
	}
	live := m.snaps.CreateSnapshot()
	m.snaps.Capture(live)
	m.snaps.Link(live, tick, m.world.RandomSeed())
	cmp := m.snaps.Compare(recorded, live)
	if !cmp.HasDifferences() {
		return
	}
	m.mismatch = true
	m.log.Warn("replay snapshot mismatch",
		logging.String("snapshot", label),
		logging.Uint32("tick", tick),
		logging.Int("entities", len(cmp.Entities)),
	)
	m.writeSnapshotReport(tick, label, cmp)
}

func (m *Manager) writeSnapshotReport(tick uint32, label string, cmp snapshots.CompareData) {
	if m.desyncDir == "" {
		return
	}
	if err := os.MkdirAll(m.desyncDir, 0o755); err != nil {
		m.log.Warn("replay desync dir unavailable", logging.Error(err))
		return
	}
	path := filepath.Join(m.desyncDir, DesyncReportName(m.now(), tick, label))
	if err := m.snaps.LogCompareDataToFile(path, cmp); err != nil {
		m.log.Warn("replay snapshot report failed", logging.Error(err))
		return
	}
	if m.desyncReport == "" {
		m.desyncReport = path
	}
	m.log.Info("replay desync report written", logging.String("path", path))
}

func (m *Manager) recordPath(name string) string {
	if filepath.Ext(name) == "" {
		name += FileExtension
	}
	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		return name
	}
	return filepath.Join(m.replayDir, name)
}

func (m *Manager) playbackPath(name string) (string, error) {
	if filepath.Ext(name) == "" {
		name += FileExtension
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	if !filepath.IsAbs(name) {
		candidate := filepath.Join(m.replayDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("replay %s: %w", name, fs.ErrNotExist)
}

func saturatingAdd(a, b uint32) uint32 {
	if b > math.MaxUint32-a {
		return math.MaxUint32
	}
	return a + b
}
