package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/models"
	"firewatch/internal/repository"
	"firewatch/internal/services/alert"
	"firewatch/internal/services/session"
	"firewatch/internal/services/websocket"

	"github.com/hybridgroup/mjpeg"
)

var (
	ErrUnknownCamera  = errors.New("unknown camera")
	ErrAlreadyRunning = errors.New("session already running")
)

// SourceOpener opens a video source by identifier.
type SourceOpener func(id string) (session.Source, error)

// SinkFactory builds the sink for a new session of camera.
type SinkFactory func(camera string, stream *mjpeg.Stream) (session.Sink, error)

// ManagerOptions wires the Manager's collaborators. Hub, Sessions,
// Snapshots and Notifiers are optional.
type ManagerOptions struct {
	Config     *config.Config
	Logger     *logger.Logger
	Detector   session.Detector
	Renderer   session.Renderer
	Snapshots  session.SnapshotRecorder
	Hub        *websocket.HubService
	Sessions   repository.SessionRepository
	Player     alert.Player
	Notifiers  []alert.Notifier
	OpenSource SourceOpener
	NewSink    SinkFactory
}

type runningSession struct {
	session    *session.Session
	dispatcher *alert.Dispatcher
	cancel     context.CancelFunc
	done       chan struct{}
}

// Manager runs one capture session per configured source.
type Manager struct {
	opts    ManagerOptions
	cfg     *config.Config
	logger  *logger.Logger
	streams map[string]*mjpeg.Stream

	mu       sync.Mutex
	baseCtx  context.Context
	running  map[string]*runningSession
	starting map[string]bool
	last     map[string]dto.SessionStatus
	alarms   []*alert.Dispatcher
	wg       sync.WaitGroup
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.OpenSource == nil {
		opts.OpenSource = func(id string) (session.Source, error) { return session.OpenCaptureSource(id) }
	}
	if opts.NewSink == nil {
		opts.NewSink = DefaultSinkFactory(opts.Config.Display)
	}

	m := &Manager{
		opts:     opts,
		cfg:      opts.Config,
		logger:   opts.Logger,
		streams:  make(map[string]*mjpeg.Stream, len(opts.Config.Sources)),
		baseCtx:  context.Background(),
		running:  make(map[string]*runningSession),
		starting: make(map[string]bool),
		last:     make(map[string]dto.SessionStatus),
	}
	for _, src := range opts.Config.Sources {
		m.streams[src.Name] = mjpeg.NewStream()
	}
	return m
}

// DefaultSinkFactory streams every session as MJPEG and, when display is
// set, also shows it in a desktop window.
func DefaultSinkFactory(display bool) SinkFactory {
	return func(camera string, stream *mjpeg.Stream) (session.Sink, error) {
		sinks := session.MultiSink{session.NewStreamSink(stream)}
		if display {
			sinks = append(sinks, session.NewWindowSink("Firewatch - "+camera))
		}
		return sinks, nil
	}
}

// Start launches a session for every configured source. ctx bounds all
// sessions started by this manager, including later restarts.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	var errs []error
	for _, src := range m.cfg.Sources {
		if err := m.StartCamera(src.Name); err != nil {
			m.logger.Error("Failed to start camera %s: %v", src.Name, err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m.cfg.Sources) && len(errs) > 0 {
		return fmt.Errorf("no camera could be started: %w", errors.Join(errs...))
	}
	return nil
}

// StartCamera starts a fresh session, with a new alert latch, for camera.
func (m *Manager) StartCamera(camera string) error {
	src, ok := m.cfg.SourceByName(camera)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCamera, camera)
	}

	// the source is opened without holding mu, so a slow stream does not stall Statuses
	m.mu.Lock()
	if _, exists := m.running[camera]; exists || m.starting[camera] {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, camera)
	}
	m.starting[camera] = true
	m.mu.Unlock()

	source, sink, err := m.open(camera, src.ID)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.starting, camera)

	if err != nil {
		return err
	}
	if err := m.baseCtx.Err(); err != nil {
		sink.Close()
		source.Close()
		return fmt.Errorf("manager stopped while starting %s: %w", camera, err)
	}

	dispatcher := alert.NewDispatcher(m.opts.Player, m.cfg.AlertFile, m.cfg.AlertRepeats, m.logger, m.opts.Notifiers...)
	sess := session.New(session.Config{
		Camera:              camera,
		Source:              src.ID,
		PredictionInterval:  m.cfg.PredictionInterval,
		ConfidenceThreshold: m.cfg.ConfidenceThreshold,
		TargetLabel:         m.cfg.TargetLabel,
	}, source, sink, m.opts.Detector, m.opts.Renderer, dispatcher, m.opts.Snapshots, m.logger)

	ctx, cancel := context.WithCancel(m.baseCtx)
	rs := &runningSession{session: sess, dispatcher: dispatcher, cancel: cancel, done: make(chan struct{})}
	m.running[camera] = rs
	m.trackAlarm(dispatcher)

	if m.opts.Sessions != nil {
		if err := m.opts.Sessions.Start(&models.Session{ID: sess.ID(), Camera: camera, Source: src.ID, StartedAt: sess.StartedAt()}); err != nil {
			m.logger.Error("Failed to record session %s: %v", sess.ID(), err)
		}
	}
	m.broadcast(dto.EventSessionStarted, camera, sess.Status())

	m.wg.Add(1)
	go m.run(ctx, camera, rs, sink)
	return nil
}

// open opens the source and sink of camera.
func (m *Manager) open(camera, id string) (session.Source, session.Sink, error) {
	source, err := m.opts.OpenSource(id)
	if err != nil {
		return nil, nil, err
	}

	sink, err := m.opts.NewSink(camera, m.streams[camera])
	if err != nil {
		source.Close()
		return nil, nil, fmt.Errorf("failed to create sink for %s: %w", camera, err)
	}
	return source, sink, nil
}

func (m *Manager) run(ctx context.Context, camera string, rs *runningSession, sink session.Sink) {
	defer m.wg.Done()
	defer close(rs.done)
	defer rs.cancel()

	reason := rs.session.Run(ctx)

	if err := sink.Close(); err != nil {
		m.logger.Warning("[%s] Failed to close sink: %v", camera, err)
	}

	status := rs.session.Status()
	m.logger.Info("[%s] Session %s stopped: %s after %d frames", camera, status.ID, reason, status.Frames)

	if m.opts.Sessions != nil {
		if err := m.opts.Sessions.Finish(status.ID, time.Now(), status.Frames, status.AlertActive, string(reason)); err != nil {
			m.logger.Error("Failed to finish session %s: %v", status.ID, err)
		}
	}

	m.mu.Lock()
	if m.running[camera] == rs {
		delete(m.running, camera)
	}
	m.last[camera] = status
	m.mu.Unlock()

	m.broadcast(dto.EventSessionStopped, camera, status)
}

func (m *Manager) broadcast(eventType, camera string, payload interface{}) {
	if m.opts.Hub == nil {
		return
	}
	if err := m.opts.Hub.BroadcastEvent(eventType, camera, payload); err != nil {
		m.logger.Warning("Failed to broadcast %s: %v", eventType, err)
	}
}

// Stop ends the running session of camera and waits for it to exit.
// An alarm already playing keeps going.
func (m *Manager) Stop(camera string) {
	m.mu.Lock()
	rs, ok := m.running[camera]
	m.mu.Unlock()
	if !ok {
		return
	}

	rs.cancel()
	<-rs.done
}

// Restart stops camera's session, if any, and starts a new one. This is
// the only way to re-arm an alert that already fired.
func (m *Manager) Restart(camera string) error {
	if _, ok := m.cfg.SourceByName(camera); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCamera, camera)
	}
	m.Stop(camera)
	return m.StartCamera(camera)
}

// StopAll stops every session and waits for them.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for _, rs := range m.running {
		rs.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("All capture sessions stopped")
}

// trackAlarm remembers d so shutdown can wait for its alarm. Finished
// alarms are dropped. Callers hold mu.
func (m *Manager) trackAlarm(d *alert.Dispatcher) {
	kept := m.alarms[:0]
	for _, a := range m.alarms {
		select {
		case <-a.Done():
		default:
			kept = append(kept, a)
		}
	}
	m.alarms = append(kept, d)
}

// WaitAlarms waits up to timeout for alarms that have fired to finish
// playing and notifying. It reports whether all of them finished. Call it
// after StopAll, so no new alarm can fire.
func (m *Manager) WaitAlarms(timeout time.Duration) bool {
	m.mu.Lock()
	var firing []*alert.Dispatcher
	for _, d := range m.alarms {
		if d.State() == alert.StateFiring {
			firing = append(firing, d)
		}
	}
	m.mu.Unlock()

	deadline := time.After(timeout)
	for _, d := range firing {
		select {
		case <-d.Done():
		case <-deadline:
			m.logger.Warning("Alarms still running after %v, shutting down anyway", timeout)
			return false
		}
	}
	return true
}

// Wait blocks until every session has ended.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Statuses returns the running session of each camera, or its last finished one.
func (m *Manager) Statuses() []dto.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	byCamera := make(map[string]dto.SessionStatus, len(m.last)+len(m.running))
	for camera, st := range m.last {
		byCamera[camera] = st
	}
	for camera, rs := range m.running {
		byCamera[camera] = rs.session.Status()
	}

	statuses := make([]dto.SessionStatus, 0, len(byCamera))
	for _, st := range byCamera {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Camera < statuses[j].Camera })
	return statuses
}

// Dispatcher returns the alert dispatcher of camera's running session.
func (m *Manager) Dispatcher(camera string) (*alert.Dispatcher, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.running[camera]
	if !ok {
		return nil, false
	}
	return rs.dispatcher, true
}

// Stream returns the MJPEG stream of camera.
func (m *Manager) Stream(camera string) (*mjpeg.Stream, bool) {
	s, ok := m.streams[camera]
	return s, ok
}

// Cameras returns the configured camera names.
func (m *Manager) Cameras() []string {
	names := make([]string, 0, len(m.cfg.Sources))
	for _, s := range m.cfg.Sources {
		names = append(names, s.Name)
	}
	return names
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.opts.Hub
}
