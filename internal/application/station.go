package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"station-assistant/internal/domain"
)

const (
	defaultTrack       = "музыка"
	defaultSendTimeout = 10 * time.Second
)

type StationConfig struct {
	ID          string
	Name        string
	Address     string
	SendTimeout time.Duration
}

type StationOption func(*Station)

// WithClock replaces time.Now for LastSeen stamps.
func WithClock(now func() time.Time) StationOption {
	return func(s *Station) { s.now = now }
}

// WithProbe sets the probe used by Connect.
func WithProbe(p DeviceProbe) StationOption {
	return func(s *Station) { s.probe = p }
}

// Station owns the device state and dispatches commands against it. Only one
// command runs at a time.
type Station struct {
	cfg      StationConfig
	registry *Registry
	sender   Sender
	probe    DeviceProbe
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    domain.StationState
	builtins map[string]Handler

	// outbox holds forwarded commands in dispatch order. At most one drain
	// goroutine runs at a time, guarded by draining.
	outbox   []outbound
	draining bool
	inflight sync.WaitGroup
}

type outbound struct {
	ctx     context.Context
	command string
	params  domain.Params
}

func NewStation(cfg StationConfig, registry *Registry, sender Sender, logger *slog.Logger, opts ...StationOption) *Station {
	if cfg.ID == "" {
		cfg.ID = domain.DefaultStationID
	}
	if cfg.Name == "" {
		cfg.Name = domain.DefaultStationName
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if sender == nil {
		sender = &NoopSender{}
	}

	s := &Station{
		cfg:      cfg,
		registry: registry,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
		state: domain.StationState{
			Volume:     domain.InitialVolume,
			Properties: make(map[string]any),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.builtins = map[string]Handler{
		domain.CommandPlay:   s.play,
		domain.CommandStop:   s.stop,
		domain.CommandPause:  s.pause,
		domain.CommandResume: s.resume,
		domain.CommandVolume: s.volume,
		domain.CommandSay:    s.say,
	}

	return s
}

func (s *Station) Registry() *Registry {
	return s.registry
}

// Dispatch runs the named command. Registry entries win over built-ins. The
// connectivity check only applies to names that are neither, so built-ins
// run even while disconnected. Dispatch never panics and never returns an
// error; failures are reported in the Result.
func (s *Station) Dispatch(ctx context.Context, name string, params domain.Params) domain.Result {
	if params == nil {
		params = domain.Params{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd, ok := s.registry.Lookup(name); ok {
		res, err := invoke(cmd.Handler, params)
		if err != nil {
			s.logger.Error("command failed", "command", name, "error", err)
			return failure(err)
		}
		s.touch()
		return res
	}

	if run, ok := s.builtins[name]; ok {
		res, err := invoke(run, params)
		if err != nil {
			s.logger.Error("command failed", "command", name, "error", err)
			return failure(err)
		}
		s.forward(ctx, name, params)
		s.touch()
		return res
	}

	if !s.state.Connected {
		s.logger.Warn("station not connected", "command", name)
		return domain.Failure(domain.KindNotConnected, "Station not connected")
	}

	s.touch()
	s.logger.Warn("unknown command", "command", name)
	return domain.Failure(domain.KindUnknownCommand, fmt.Sprintf("Unknown command: %s", name))
}

func invoke(h Handler, params domain.Params) (res domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	res, err = h(params)
	if err == nil && res.Status == "" {
		res.Status = domain.StatusSuccess
	}
	return res, err
}

func failure(err error) domain.Result {
	kind := domain.KindHandlerFailure
	if errors.Is(err, domain.ErrValidation) {
		kind = domain.KindValidationFailure
	}
	return domain.Failure(kind, err.Error())
}

// forward queues the command for delivery to the device. Commands reach the
// sender one at a time in the order they were dispatched. The caller holds
// s.mu.
func (s *Station) forward(ctx context.Context, command string, params domain.Params) {
	if s.cfg.Address == "" || !s.state.Connected {
		return
	}

	s.inflight.Add(1)
	s.outbox = append(s.outbox, outbound{
		ctx:     context.WithoutCancel(ctx),
		command: command,
		params:  params.Clone(),
	})
	if !s.draining {
		s.draining = true
		go s.drain()
	}
}

func (s *Station) drain() {
	for {
		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.outbox[0]
		s.outbox[0] = outbound{}
		s.outbox = s.outbox[1:]
		s.mu.Unlock()

		s.deliver(next)
		s.inflight.Done()
	}
}

func (s *Station) deliver(cmd outbound) {
	ctx, cancel := context.WithTimeout(cmd.ctx, s.cfg.SendTimeout)
	defer cancel()

	if err := s.sender.Send(ctx, s.cfg.Address, cmd.command, cmd.params); err != nil {
		s.logger.Debug("device command not delivered", "command", cmd.command, "address", s.cfg.Address, "error", err)
	}
}

// Wait blocks until every queued send has finished. The station stays usable
// afterwards.
func (s *Station) Wait() {
	s.inflight.Wait()
}

// Connect marks the station connected. When an address and a probe are
// configured the device is asked for its info first; a failed probe is
// logged and does not prevent connecting.
func (s *Station) Connect(ctx context.Context) {
	var info map[string]any
	if s.probe != nil && s.cfg.Address != "" {
		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		var err error
		info, err = s.probe.Info(probeCtx, s.cfg.Address)
		cancel()
		if err != nil {
			s.logger.Warn("device probe failed", "address", s.cfg.Address, "error", err)
			info = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if info != nil {
		s.setProperty("device_info", info)
	}
	s.state.Connected = true
	s.touch()
	s.logger.Info("connected to station", "name", s.cfg.Name, "address", s.cfg.Address)
}

func (s *Station) Disconnect() {
	s.mu.Lock()
	s.state.Connected = false
	s.mu.Unlock()

	s.logger.Info("disconnected from station", "name", s.cfg.Name)
}

// UpdateProperty records a last-known attribute of the device.
func (s *Station) UpdateProperty(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setProperty(key, value)
}

func (s *Station) Status() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.Snapshot{
		DeviceID:          s.cfg.ID,
		Name:              s.cfg.Name,
		DeviceType:        domain.DeviceType,
		Connected:         s.state.Connected,
		IsPlaying:         s.state.IsPlaying,
		Volume:            s.state.Volume,
		Properties:        make(map[string]any, len(s.state.Properties)),
		AvailableCommands: s.availableCommands(),
	}
	if s.state.CurrentTrack != nil {
		track := *s.state.CurrentTrack
		snap.CurrentTrack = &track
	}
	if s.state.LastSeen != nil {
		seen := *s.state.LastSeen
		snap.LastSeen = &seen
	}
	for k, v := range s.state.Properties {
		snap.Properties[k] = v
	}

	return snap
}

func (s *Station) availableCommands() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, name := range append(s.registry.Names(), domain.BuiltinCommands...) {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Station) touch() {
	now := s.now()
	s.state.LastSeen = &now
}

func (s *Station) setProperty(key string, value any) {
	s.state.Properties[key] = value
	s.touch()
}

func (s *Station) play(params domain.Params) (domain.Result, error) {
	query := params.String("query", "")
	if query == "" {
		query = defaultTrack
	}

	s.state.IsPlaying = true
	s.state.CurrentTrack = &query
	s.setProperty("is_playing", true)
	s.setProperty("current_track", query)

	return domain.Result{
		Status:  domain.StatusSuccess,
		Message: fmt.Sprintf("Включаю: %s", query),
		Speech:  fmt.Sprintf("Включаю %s", query),
		Data:    map[string]any{"track": query},
	}, nil
}

func (s *Station) stop(_ domain.Params) (domain.Result, error) {
	s.state.IsPlaying = false
	s.state.CurrentTrack = nil
	s.setProperty("is_playing", false)
	s.setProperty("current_track", nil)

	return domain.Result{
		Status:  domain.StatusSuccess,
		Message: "Воспроизведение остановлено",
		Speech:  "Останавливаю воспроизведение",
	}, nil
}

func (s *Station) pause(_ domain.Params) (domain.Result, error) {
	s.state.IsPlaying = false
	s.setProperty("is_playing", false)

	return domain.Result{
		Status:  domain.StatusSuccess,
		Message: "Воспроизведение приостановлено",
		Speech:  "Ставлю на паузу",
	}, nil
}

func (s *Station) resume(_ domain.Params) (domain.Result, error) {
	s.state.IsPlaying = true
	s.setProperty("is_playing", true)

	return domain.Result{
		Status:  domain.StatusSuccess,
		Message: "Воспроизведение возобновлено",
		Speech:  "Продолжаю воспроизведение",
	}, nil
}

func (s *Station) volume(params domain.Params) (domain.Result, error) {
	level, err := params.Int("level", domain.InitialVolume)
	if err != nil {
		return domain.Result{}, err
	}
	level = domain.ClampVolume(level)

	s.state.Volume = level
	s.setProperty("volume", level)

	return domain.Result{
		Status:  domain.StatusSuccess,
		Message: fmt.Sprintf("Громкость установлена: %d%%", level),
		Speech:  fmt.Sprintf("Устанавливаю громкость %d процентов", level),
		Data:    map[string]any{"level": level},
	}, nil
}

func (s *Station) say(params domain.Params) (domain.Result, error) {
	text := params.String("text", "")

	return domain.Result{
		Status:  domain.StatusSuccess,
		Message: fmt.Sprintf("Озвучиваю: %s", text),
		Speech:  text,
	}, nil
}
