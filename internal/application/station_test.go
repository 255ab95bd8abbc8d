package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"station-assistant/internal/application"
	"station-assistant/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []domain.CommandRequest
	addrs []string
	err   error
	delay time.Duration
	slow  map[string]time.Duration
}

func (r *recordingSender) Send(ctx context.Context, address, command string, params domain.Params) error {
	delay := r.delay
	if d, ok := r.slow[command]; ok {
		delay = d
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, domain.CommandRequest{Command: command, Params: params})
	r.addrs = append(r.addrs, address)
	return r.err
}

func (r *recordingSender) commands() []domain.CommandRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CommandRequest(nil), r.sent...)
}

type stubProbe struct {
	info map[string]any
	err  error
}

func (s *stubProbe) Info(_ context.Context, _ string) (map[string]any, error) {
	return s.info, s.err
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func newStation(t *testing.T, sender application.Sender, opts ...application.StationOption) *application.Station {
	t.Helper()
	logger := discardLogger()
	registry := application.NewRegistry(logger)
	application.RegisterDefaultCommands(registry, application.DefaultDefaults(), fixedClock())
	opts = append([]application.StationOption{application.WithClock(fixedClock())}, opts...)
	return application.NewStation(application.StationConfig{Address: "192.168.1.50"}, registry, sender, logger, opts...)
}

func TestStation_VolumeClamps(t *testing.T) {
	tests := []struct {
		name  string
		level any
		want  int
	}{
		{name: "above range", level: 150, want: 100},
		{name: "below range", level: -10, want: 0},
		{name: "in range", level: 35, want: 35},
		{name: "json float", level: 42.9, want: 42},
		{name: "numeric string", level: "70", want: 70},
		{name: "boundary high", level: 100, want: 100},
		{name: "boundary low", level: 0, want: 0},
		{name: "huge float", level: 1e20, want: 100},
		{name: "float at int64 edge", level: float64(1 << 63), want: 100},
		{name: "huge negative float", level: -1e20, want: 0},
		{name: "huge numeric string", level: "99999999999999999999", want: 100},
		{name: "huge negative string", level: "-99999999999999999999", want: 0},
		{name: "huge json number", level: json.Number("1e30"), want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			station := newStation(t, nil)
			ctx := context.Background()

			res := station.Dispatch(ctx, domain.CommandVolume, domain.Params{"level": tt.level})
			if !res.OK() {
				t.Fatalf("dispatch volume: %+v", res)
			}

			if got := station.Status().Volume; got != tt.want {
				t.Errorf("volume: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStation_VolumeRejectsNonNumeric(t *testing.T) {
	for _, level := range []any{"loud", true, []any{1}, map[string]any{"x": 1}} {
		station := newStation(t, nil)

		res := station.Dispatch(context.Background(), domain.CommandVolume, domain.Params{"level": level})
		if res.OK() {
			t.Fatalf("level %v: expected error, got %+v", level, res)
		}
		if res.Code != domain.KindValidationFailure {
			t.Errorf("level %v: code: got %q, want %q", level, res.Code, domain.KindValidationFailure)
		}
		if got := station.Status().Volume; got != domain.InitialVolume {
			t.Errorf("level %v: volume changed to %d", level, got)
		}
	}
}

func TestStation_VolumeDefaultsWhenMissing(t *testing.T) {
	station := newStation(t, nil)
	station.Dispatch(context.Background(), domain.CommandVolume, domain.Params{"level": 10})

	res := station.Dispatch(context.Background(), domain.CommandVolume, nil)
	if !res.OK() {
		t.Fatalf("dispatch: %+v", res)
	}
	if got := station.Status().Volume; got != domain.InitialVolume {
		t.Errorf("volume: got %d, want %d", got, domain.InitialVolume)
	}
}

func TestStation_PlayStopPauseResume(t *testing.T) {
	station := newStation(t, nil)
	ctx := context.Background()

	res := station.Dispatch(ctx, domain.CommandPlay, domain.Params{"query": "джаз"})
	if !res.OK() {
		t.Fatalf("play: %+v", res)
	}
	if res.Speech != "Включаю джаз" {
		t.Errorf("play speech: got %q", res.Speech)
	}

	status := station.Status()
	if !status.IsPlaying || status.CurrentTrack == nil || *status.CurrentTrack != "джаз" {
		t.Fatalf("after play: playing=%v track=%v", status.IsPlaying, status.CurrentTrack)
	}

	station.Dispatch(ctx, domain.CommandPause, nil)
	status = station.Status()
	if status.IsPlaying {
		t.Error("after pause: still playing")
	}
	if status.CurrentTrack == nil || *status.CurrentTrack != "джаз" {
		t.Errorf("after pause: track should be kept, got %v", status.CurrentTrack)
	}

	station.Dispatch(ctx, domain.CommandResume, nil)
	status = station.Status()
	if !status.IsPlaying || status.CurrentTrack == nil {
		t.Errorf("after resume: playing=%v track=%v", status.IsPlaying, status.CurrentTrack)
	}

	station.Dispatch(ctx, domain.CommandStop, nil)
	status = station.Status()
	if status.IsPlaying {
		t.Error("after stop: still playing")
	}
	if status.CurrentTrack != nil {
		t.Errorf("after stop: track should be cleared, got %q", *status.CurrentTrack)
	}
	if v, ok := status.Properties["current_track"]; !ok || v != nil {
		t.Errorf("after stop: current_track property: got %v", v)
	}
}

func TestStation_PlayDefaultTrack(t *testing.T) {
	station := newStation(t, nil)

	res := station.Dispatch(context.Background(), domain.CommandPlay, nil)
	if res.Message != "Включаю: музыка" {
		t.Errorf("message: got %q", res.Message)
	}
	if track := station.Status().CurrentTrack; track == nil || *track != "музыка" {
		t.Errorf("track: got %v", track)
	}
}

func TestStation_SaySpeaksVerbatim(t *testing.T) {
	station := newStation(t, nil)
	before := station.Status()

	for _, text := range []string{"Привет, мир!", ""} {
		res := station.Dispatch(context.Background(), domain.CommandSay, domain.Params{"text": text})
		if !res.OK() {
			t.Fatalf("say: %+v", res)
		}
		if res.Speech != text {
			t.Errorf("speech: got %q, want %q", res.Speech, text)
		}
	}

	after := station.Status()
	if after.IsPlaying != before.IsPlaying || after.Volume != before.Volume || len(after.Properties) != len(before.Properties) {
		t.Error("say mutated device state")
	}
}

func TestStation_UnknownCommand(t *testing.T) {
	station := newStation(t, nil)
	ctx := context.Background()

	res := station.Dispatch(ctx, "dance", nil)
	if res.Code != domain.KindNotConnected || res.Message != "Station not connected" {
		t.Errorf("disconnected: got %+v", res)
	}
	if station.Status().LastSeen != nil {
		t.Error("disconnected unknown command should not stamp last seen")
	}

	station.Connect(ctx)
	res = station.Dispatch(ctx, "dance", nil)
	if res.Code != domain.KindUnknownCommand || res.Message != "Unknown command: dance" {
		t.Errorf("connected: got %+v", res)
	}
}

func TestStation_BuiltinsRunWhileDisconnected(t *testing.T) {
	station := newStation(t, nil)

	res := station.Dispatch(context.Background(), domain.CommandPlay, domain.Params{"query": "рок"})
	if !res.OK() {
		t.Fatalf("play while disconnected: %+v", res)
	}
	status := station.Status()
	if status.Connected {
		t.Fatal("station should still be disconnected")
	}
	if !status.IsPlaying {
		t.Error("play should run while disconnected")
	}
	if status.LastSeen == nil {
		t.Error("last seen should be stamped")
	}
}

func TestStation_CustomHandler(t *testing.T) {
	station := newStation(t, nil)
	calls := 0
	station.Registry().Register("custom", func(params domain.Params) (domain.Result, error) {
		calls++
		return domain.Success("ok"), nil
	})

	res := station.Dispatch(context.Background(), "custom", domain.Params{})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if !res.OK() || res.Speech != "ok" {
		t.Errorf("result: %+v", res)
	}
}

func TestStation_CustomHandlerFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler application.Handler
		want    string
	}{
		{
			name: "error",
			handler: func(domain.Params) (domain.Result, error) {
				return domain.Result{}, errors.New("boom")
			},
			want: "boom",
		},
		{
			name: "panic",
			handler: func(domain.Params) (domain.Result, error) {
				panic("kaput")
			},
			want: "kaput",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			station := newStation(t, nil)
			calls := 0
			station.Registry().Register("custom", func(p domain.Params) (domain.Result, error) {
				calls++
				return tt.handler(p)
			})

			res := station.Dispatch(context.Background(), "custom", domain.Params{})
			if calls != 1 {
				t.Errorf("calls: got %d, want 1", calls)
			}
			if res.Status != domain.StatusError || res.Code != domain.KindHandlerFailure {
				t.Errorf("result: %+v", res)
			}
			if res.Message != tt.want {
				t.Errorf("message: got %q, want %q", res.Message, tt.want)
			}
			if station.Status().LastSeen != nil {
				t.Error("failed handler should not stamp last seen")
			}
		})
	}
}

func TestStation_RegisterOverwrites(t *testing.T) {
	station := newStation(t, nil)
	station.Registry().Register("weather", application.StringHandler(func(domain.Params) (string, error) {
		return "всегда дождь", nil
	}))

	res := station.Dispatch(context.Background(), "weather", nil)
	if res.Speech != "всегда дождь" {
		t.Errorf("speech: got %q", res.Speech)
	}
}

func TestStation_RegistryOverridesBuiltin(t *testing.T) {
	station := newStation(t, nil)
	station.Registry().Register(domain.CommandPlay, application.SimpleCommand("свой плеер"))

	res := station.Dispatch(context.Background(), domain.CommandPlay, domain.Params{"query": "рок"})
	if res.Speech != "свой плеер" {
		t.Errorf("speech: got %q", res.Speech)
	}
	if station.Status().IsPlaying {
		t.Error("built-in play should not have run")
	}
}

func TestStation_StatusIsIdempotent(t *testing.T) {
	station := newStation(t, nil)
	station.Dispatch(context.Background(), domain.CommandPlay, domain.Params{"query": "джаз"})

	first := station.Status()
	second := station.Status()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("snapshots differ:\n%+v\n%+v", first, second)
	}
}

func TestStation_StatusIsACopy(t *testing.T) {
	station := newStation(t, nil)
	station.Dispatch(context.Background(), domain.CommandPlay, domain.Params{"query": "джаз"})

	snap := station.Status()
	snap.Properties["injected"] = true
	*snap.CurrentTrack = "changed"

	again := station.Status()
	if _, ok := again.Properties["injected"]; ok {
		t.Error("snapshot properties alias station state")
	}
	if *again.CurrentTrack != "джаз" {
		t.Error("snapshot track aliases station state")
	}
}

func TestStation_AvailableCommands(t *testing.T) {
	station := newStation(t, nil)
	station.Registry().Register(domain.CommandPlay, application.SimpleCommand("x"))
	station.Registry().Register("custom", application.SimpleCommand("x"))

	got := station.Status().AvailableCommands
	want := []string{"climate", "custom", "lights", "news", "pause", "play", "resume", "say", "security", "stop", "time", "volume", "weather"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("available commands:\ngot  %v\nwant %v", got, want)
	}
}

func TestStation_ForwardsBuiltinsWhenConnected(t *testing.T) {
	sender := &recordingSender{}
	station := newStation(t, sender)
	ctx := context.Background()

	station.Dispatch(ctx, domain.CommandPlay, domain.Params{"query": "рок"})
	station.Wait()
	if n := len(sender.commands()); n != 0 {
		t.Fatalf("disconnected station forwarded %d commands", n)
	}

	station.Connect(ctx)
	station.Dispatch(ctx, domain.CommandVolume, domain.Params{"level": 30})
	station.Dispatch(ctx, domain.CommandLights, domain.Params{"action": "on"})
	station.Wait()

	sent := sender.commands()
	if len(sent) != 1 {
		t.Fatalf("forwarded: got %d, want 1", len(sent))
	}
	if sent[0].Command != domain.CommandVolume || sent[0].Params["level"] != 30 {
		t.Errorf("forwarded: %+v", sent[0])
	}
}

func TestStation_ForwardsInDispatchOrder(t *testing.T) {
	sender := &recordingSender{slow: map[string]time.Duration{domain.CommandPlay: 50 * time.Millisecond}}
	station := newStation(t, sender)
	ctx := context.Background()
	station.Connect(ctx)

	station.Dispatch(ctx, domain.CommandPlay, domain.Params{"query": "джаз"})
	station.Dispatch(ctx, domain.CommandStop, nil)
	station.Dispatch(ctx, domain.CommandVolume, domain.Params{"level": 20})
	station.Wait()

	var got []string
	for _, cmd := range sender.commands() {
		got = append(got, cmd.Command)
	}
	want := []string{domain.CommandPlay, domain.CommandStop, domain.CommandVolume}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("device received %v, want %v", got, want)
	}
	if station.Status().IsPlaying {
		t.Error("station still playing after stop")
	}
}

func TestStation_SendFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	station := newStation(t, sender)
	ctx := context.Background()
	station.Connect(ctx)

	res := station.Dispatch(ctx, domain.CommandStop, nil)
	station.Wait()
	if !res.OK() {
		t.Errorf("send failure leaked into result: %+v", res)
	}
}

func TestStation_SendIsBoundedByTimeout(t *testing.T) {
	sender := &recordingSender{delay: time.Hour}
	logger := discardLogger()
	registry := application.NewRegistry(logger)
	station := application.NewStation(application.StationConfig{
		Address:     "192.168.1.50",
		SendTimeout: 20 * time.Millisecond,
	}, registry, sender, logger)
	ctx := context.Background()
	station.Connect(ctx)

	start := time.Now()
	res := station.Dispatch(ctx, domain.CommandPause, nil)
	if !res.OK() {
		t.Fatalf("pause: %+v", res)
	}

	done := make(chan struct{})
	go func() {
		station.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("background send was not cancelled by its timeout")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("send took too long")
	}
}

func TestStation_ConnectStoresDeviceInfo(t *testing.T) {
	probe := &stubProbe{info: map[string]any{"model": "station-max"}}
	station := newStation(t, nil, application.WithProbe(probe))

	station.Connect(context.Background())

	status := station.Status()
	if !status.Connected {
		t.Fatal("not connected")
	}
	info, ok := status.Properties["device_info"].(map[string]any)
	if !ok || info["model"] != "station-max" {
		t.Errorf("device_info: got %v", status.Properties["device_info"])
	}
}

func TestStation_ConnectSurvivesProbeFailure(t *testing.T) {
	probe := &stubProbe{err: errors.New("no route to host")}
	station := newStation(t, nil, application.WithProbe(probe))

	station.Connect(context.Background())

	status := station.Status()
	if !status.Connected {
		t.Error("probe failure should not prevent connecting")
	}
	if _, ok := status.Properties["device_info"]; ok {
		t.Error("device_info should not be set")
	}

	station.Disconnect()
	if station.Status().Connected {
		t.Error("still connected after disconnect")
	}
}

func TestStation_UpdatePropertyStampsLastSeen(t *testing.T) {
	station := newStation(t, nil)

	station.UpdateProperty("battery", 80)

	status := station.Status()
	if status.Properties["battery"] != 80 {
		t.Errorf("battery: got %v", status.Properties["battery"])
	}
	if status.LastSeen == nil || !status.LastSeen.Equal(fixedClock()()) {
		t.Errorf("last seen: got %v", status.LastSeen)
	}
}

func TestStation_ConcurrentDispatch(t *testing.T) {
	station := newStation(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch i % 4 {
			case 0:
				station.Dispatch(ctx, domain.CommandPlay, domain.Params{"query": "рок"})
			case 1:
				station.Dispatch(ctx, domain.CommandStop, nil)
			case 2:
				station.Dispatch(ctx, domain.CommandVolume, domain.Params{"level": i})
			default:
				_ = station.Status()
			}
		}()
	}
	wg.Wait()

	status := station.Status()
	if !status.IsPlaying && status.CurrentTrack != nil {
		t.Errorf("track %q set while not playing", *status.CurrentTrack)
	}
	if status.Volume < domain.MinVolume || status.Volume > domain.MaxVolume {
		t.Errorf("volume out of range: %d", status.Volume)
	}
}
