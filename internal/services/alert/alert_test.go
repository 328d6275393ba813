package alert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"firewatch/internal/logger"
	"firewatch/internal/models"
	"firewatch/internal/repository/sqlite"
)

type fakePlayer struct {
	mu     sync.Mutex
	calls  int
	failOn int
	delay  time.Duration
	block  chan struct{}
}

func (p *fakePlayer) Play(ctx context.Context, path string) error {
	if p.block != nil {
		<-p.block
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failOn > 0 && p.calls == p.failOn {
		return errors.New("device busy")
	}
	return nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeNotifier struct {
	got []models.Alert
	err error
}

func (n *fakeNotifier) Notify(_ context.Context, a models.Alert) error {
	n.got = append(n.got, a)
	return n.err
}

func waitDone(t *testing.T, d *Dispatcher) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not finish")
	}
}

// ========================================
// Latch Tests
// ========================================

func TestLatch_ActivatesOnce(t *testing.T) {
	var l Latch
	if l.Active() {
		t.Fatal("New latch must be inactive")
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Activate() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("Expected exactly one winner, got %d", wins.Load())
	}
	if !l.Active() {
		t.Error("Latch should stay active")
	}
}

// ========================================
// Dispatcher Tests
// ========================================

func TestDispatcher_PlaysAllRepeats(t *testing.T) {
	var buf bytes.Buffer
	player := &fakePlayer{}
	notifier := &fakeNotifier{}
	d := NewDispatcher(player, "sound.mp3", 5, logger.NewWriterLogger(&buf), notifier)

	if d.State() != StateIdle {
		t.Fatal("Dispatcher should start idle")
	}
	if !d.Trigger(context.Background(), models.Alert{Camera: "cam0", Label: "fire"}) {
		t.Fatal("First trigger should start the alarm")
	}
	waitDone(t, d)

	if player.count() != 5 {
		t.Errorf("Expected 5 plays, got %d", player.count())
	}
	if len(notifier.got) != 1 || notifier.got[0].Camera != "cam0" {
		t.Errorf("Expected one notification for cam0, got %+v", notifier.got)
	}
	if d.State() != StateFiring {
		t.Error("Firing is terminal")
	}
}

func TestDispatcher_SecondTriggerIsNoop(t *testing.T) {
	var buf bytes.Buffer
	player := &fakePlayer{}
	d := NewDispatcher(player, "sound.mp3", 2, logger.NewWriterLogger(&buf))

	if !d.Trigger(context.Background(), models.Alert{}) {
		t.Fatal("First trigger should succeed")
	}
	if d.Trigger(context.Background(), models.Alert{}) {
		t.Error("Second trigger must be rejected")
	}
	waitDone(t, d)

	if player.count() != 2 {
		t.Errorf("Expected 2 plays from a single alarm, got %d", player.count())
	}
}

func TestDispatcher_AbortsOnFirstFailure(t *testing.T) {
	var buf bytes.Buffer
	player := &fakePlayer{failOn: 2}
	d := NewDispatcher(player, "sound.mp3", 5, logger.NewWriterLogger(&buf))

	d.Trigger(context.Background(), models.Alert{})
	waitDone(t, d)

	if player.count() != 2 {
		t.Errorf("Expected playback to stop after the failing attempt, got %d calls", player.count())
	}
	if d.State() != StateFiring {
		t.Error("Failure must not reset the dispatcher")
	}
}

func TestDispatcher_TriggerDoesNotBlock(t *testing.T) {
	var buf bytes.Buffer
	player := &fakePlayer{block: make(chan struct{})}
	d := NewDispatcher(player, "sound.mp3", 1, logger.NewWriterLogger(&buf))

	start := time.Now()
	d.Trigger(context.Background(), models.Alert{})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Trigger blocked for %v", elapsed)
	}

	close(player.block)
	waitDone(t, d)
}

func TestDispatcher_SurvivesCancelledContext(t *testing.T) {
	var buf bytes.Buffer
	player := &fakePlayer{delay: 10 * time.Millisecond}
	d := NewDispatcher(player, "sound.mp3", 3, logger.NewWriterLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	d.Trigger(ctx, models.Alert{})
	cancel()
	waitDone(t, d)

	if player.count() != 3 {
		t.Errorf("Alarm should finish after the session context ends, got %d plays", player.count())
	}
}

func TestDispatcher_NotifierFailureStillPlays(t *testing.T) {
	var buf bytes.Buffer
	player := &fakePlayer{}
	d := NewDispatcher(player, "sound.mp3", 1, logger.NewWriterLogger(&buf), &fakeNotifier{err: errors.New("broker down")}, nil)

	d.Trigger(context.Background(), models.Alert{})
	waitDone(t, d)

	if player.count() != 1 {
		t.Errorf("Expected 1 play, got %d", player.count())
	}
	if !bytes.Contains(buf.Bytes(), []byte("broker down")) {
		t.Errorf("Expected notifier error in log, got %q", buf.String())
	}
}

type blockingNotifier struct {
	release chan struct{}
	done    atomic.Bool
}

func (n *blockingNotifier) Notify(context.Context, models.Alert) error {
	<-n.release
	n.done.Store(true)
	return nil
}

type signalPlayer struct {
	played chan struct{}
	once   sync.Once
}

func (p *signalPlayer) Play(context.Context, string) error {
	p.once.Do(func() { close(p.played) })
	return nil
}

func TestDispatcher_SlowNotifierDoesNotDelaySound(t *testing.T) {
	var buf bytes.Buffer
	notifier := &blockingNotifier{release: make(chan struct{})}
	player := &signalPlayer{played: make(chan struct{})}
	d := NewDispatcher(player, "sound.mp3", 2, logger.NewWriterLogger(&buf), notifier)

	d.Trigger(context.Background(), models.Alert{Camera: "cam0"})

	select {
	case <-player.played:
	case <-time.After(500 * time.Millisecond):
		close(notifier.release)
		t.Fatal("Alarm did not start while a notifier was still running")
	}

	select {
	case <-d.Done():
		t.Fatal("Done must wait for pending notifiers")
	case <-time.After(20 * time.Millisecond):
	}

	close(notifier.release)
	waitDone(t, d)
	if !notifier.done.Load() {
		t.Error("Notifier should have completed before Done")
	}
}

type panicNotifier struct{}

func (panicNotifier) Notify(context.Context, models.Alert) error { panic("encoder exploded") }

func TestDispatcher_NotifierPanicStillPlays(t *testing.T) {
	var buf bytes.Buffer
	player := &fakePlayer{}
	d := NewDispatcher(player, "sound.mp3", 3, logger.NewWriterLogger(&buf), panicNotifier{})

	d.Trigger(context.Background(), models.Alert{})
	waitDone(t, d)

	if player.count() != 3 {
		t.Errorf("Expected 3 plays, got %d", player.count())
	}
	if !bytes.Contains(buf.Bytes(), []byte("encoder exploded")) {
		t.Errorf("Expected notifier panic in log, got %q", buf.String())
	}
}

type panicPlayer struct{}

func (panicPlayer) Play(context.Context, string) error { panic("audio driver crashed") }

func TestDispatcher_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(panicPlayer{}, "sound.mp3", 1, logger.NewWriterLogger(&buf))

	d.Trigger(context.Background(), models.Alert{})
	waitDone(t, d)

	if !bytes.Contains(buf.Bytes(), []byte("audio driver crashed")) {
		t.Errorf("Expected panic to be logged, got %q", buf.String())
	}
}

// ========================================
// Player + Recorder Tests
// ========================================

func TestNewCommandPlayer(t *testing.T) {
	if _, err := NewCommandPlayer("   "); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("Expected ErrNoPlayer, got %v", err)
	}

	p, err := NewCommandPlayer("ffplay -nodisp -autoexit")
	if err != nil {
		t.Fatalf("NewCommandPlayer failed: %v", err)
	}
	if p.name != "ffplay" || len(p.args) != 2 {
		t.Errorf("Unexpected parse: %+v", p)
	}
}

func TestCommandPlayer_MissingFile(t *testing.T) {
	p, _ := NewCommandPlayer("true")
	if err := p.Play(context.Background(), filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("Expected error for a missing sound file")
	}
}

func TestCommandPlayer_FailingCommand(t *testing.T) {
	sound := filepath.Join(t.TempDir(), "sound.mp3")
	if err := os.WriteFile(sound, []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}

	p, _ := NewCommandPlayer("firewatch-no-such-player")
	if err := p.Play(context.Background(), sound); err == nil {
		t.Error("Expected error for an unknown player binary")
	}
}

func TestRecorder_StoresAlert(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewAlertRepository(db)
	rec := NewRecorder(repo)

	alert := models.Alert{AlertID: "a-1", SessionID: "s-1", Camera: "cam0", Label: "fire", Confidence: 0.77, TriggeredAt: time.Now()}
	if err := rec.Notify(context.Background(), alert); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	count, _ := repo.Count(&models.AlertFilter{Camera: "cam0"})
	if count != 1 {
		t.Errorf("Expected 1 stored alert, got %d", count)
	}
}
