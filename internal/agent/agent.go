// Package agent owns one interview session: room connection, participant
// resolution, the realtime speech session and the audio bridges, plus
// startup/shutdown sequencing for all of them.
package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/pion/webrtc/v4"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/agenterr"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/bridge"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/config"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/realtime"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/session"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/transcript"
)

// Agent is a single-session interview bridge. It joins one room, bridges one
// interviewee against the realtime speech service, and exits with the
// session.
type Agent struct {
	cfg *config.Config

	mu     sync.Mutex
	room   *lksdk.Room
	track  *lkmedia.PCMLocalTrack
	rt     *realtime.Client
	player *bridge.Player
	relay  *transcript.Relay

	ingressMu sync.Mutex
	ingress   map[string]*bridge.Ingress

	participants chan *lksdk.RemoteParticipant
	disconnected chan struct{}
	discOnce     sync.Once
	fatal        chan error

	shuttingDown atomic.Bool
	cleanupOnce  sync.Once
}

// New creates an agent for one interview session.
func New(cfg *config.Config) *Agent {
	return &Agent{
		cfg:          cfg,
		ingress:      make(map[string]*bridge.Ingress),
		participants: make(chan *lksdk.RemoteParticipant, 1),
		disconnected: make(chan struct{}),
		fatal:        make(chan error, 1),
	}
}

// Run executes the session until the room disconnects, a termination signal
// arrives, or a fatal error occurs. Cleanup always runs before a fatal error
// propagates.
func (a *Agent) Run(ctx context.Context) error {
	defer a.cleanup()

	if err := a.connectRoom(); err != nil {
		return a.failed(err)
	}

	participant, err := a.waitForParticipant(ctx)
	if err != nil {
		return a.failed(err)
	}
	settings := session.ParseMetadata(participant.Metadata(), a.cfg.DefaultVoice)

	if err := a.publishAudioTrack(); err != nil {
		return a.failed(err)
	}

	a.mu.Lock()
	a.relay = transcript.NewRelay(&dataChannelPublisher{room: a.room})
	a.rt = realtime.NewClient(realtime.Options{
		Endpoint:     a.cfg.AzureEndpoint,
		Deployment:   a.cfg.AzureDeployment,
		APIKey:       a.cfg.AzureAPIKey,
		APIVersion:   a.cfg.AzureAPIVersion,
		ReadyTimeout: a.cfg.ReadyTimeout,
		Session: realtime.SessionConfig{
			Instructions: session.BuildPrompt(settings.Context),
			Voice:        settings.Voice,
		},
		OnFatal: a.reportFatal,
	})
	a.registerRealtimeHandlers()
	rt := a.rt
	a.mu.Unlock()

	if err := rt.Connect(); err != nil {
		return a.failed(err)
	}

	// The interviewee may have published their microphone before the
	// realtime client existed; pick those tracks up now.
	a.bridgeExistingTracks(participant)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logging.Info(logging.CategoryAgent, "session running room=%s participant=%s voice=%s",
		a.cfg.RoomName, participant.Identity(), settings.Voice)

	select {
	case <-ctx.Done():
		logging.Info(logging.CategoryAgent, "context cancelled, ending session")
		return nil
	case sig := <-sigChan:
		logging.Info(logging.CategoryAgent, "received signal %v, ending session", sig)
		return nil
	case <-a.disconnected:
		logging.Info(logging.CategoryAgent, "room disconnected, ending session")
		return nil
	case err := <-a.fatal:
		return a.failed(err)
	}
}

func (a *Agent) failed(err error) error {
	logging.Error(logging.CategoryAgent, "session failed code=%s recoverable=%v: %v",
		agenterr.CodeOf(err), agenterr.IsRecoverable(err), err)
	return err
}

func (a *Agent) connectRoom() error {
	room, err := lksdk.ConnectToRoom(a.cfg.LiveKitURL, lksdk.ConnectInfo{
		APIKey:              a.cfg.LiveKitAPIKey,
		APISecret:           a.cfg.LiveKitAPISecret,
		RoomName:            a.cfg.RoomName,
		ParticipantIdentity: a.cfg.AgentIdentity,
		ParticipantName:     "Arjuna AI",
	}, a.roomCallbacks())
	if err != nil {
		return agenterr.Wrap(fmt.Errorf("connect to room: %w", err), agenterr.CodeRoomConnect)
	}

	a.mu.Lock()
	a.room = room
	a.mu.Unlock()
	logging.Info(logging.CategoryAgent, "connected to room room=%s identity=%s",
		room.Name(), room.LocalParticipant.Identity())
	return nil
}

func (a *Agent) roomCallbacks() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		OnDisconnected: func() {
			a.discOnce.Do(func() { close(a.disconnected) })
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			logging.Info(logging.CategoryAgent, "participant connected identity=%s", rp.Identity())
			select {
			case a.participants <- rp:
			default:
			}
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			logging.Info(logging.CategoryAgent, "participant disconnected identity=%s", rp.Identity())
			a.removeIngress(rp.Identity())
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: a.onTrackSubscribed,
			OnTrackUnsubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				a.removeIngress(rp.Identity())
			},
		},
	}
}

// waitForParticipant resolves the interviewee: an already-joined remote
// participant, or the next one to connect within the configured timeout.
func (a *Agent) waitForParticipant(ctx context.Context) (*lksdk.RemoteParticipant, error) {
	a.mu.Lock()
	room := a.room
	a.mu.Unlock()

	if existing := room.GetRemoteParticipants(); len(existing) > 0 {
		rp := existing[0]
		logging.Info(logging.CategoryAgent, "participant already present identity=%s", rp.Identity())
		return rp, nil
	}

	logging.Info(logging.CategoryAgent, "waiting for participant timeout=%v", a.cfg.ParticipantTimeout)
	timer := time.NewTimer(a.cfg.ParticipantTimeout)
	defer timer.Stop()

	select {
	case rp := <-a.participants:
		return rp, nil
	case <-timer.C:
		return nil, agenterr.Wrap(
			fmt.Errorf("no participant joined within %v", a.cfg.ParticipantTimeout),
			agenterr.CodeParticipantWait)
	case <-a.disconnected:
		return nil, agenterr.Wrap(errors.New("room disconnected while waiting for participant"), agenterr.CodeParticipantWait)
	case <-ctx.Done():
		return nil, agenterr.Wrap(ctx.Err(), agenterr.CodeParticipantWait)
	}
}

// publishAudioTrack creates the 24kHz mono source for synthesized speech and
// publishes it with a non-microphone source tag, so no listener — including
// this process — mistakes the agent's output for a human speaker.
func (a *Agent) publishAudioTrack() error {
	track, err := lkmedia.NewPCMLocalTrack(bridge.SampleRate, bridge.Channels, nil)
	if err != nil {
		return agenterr.Wrap(fmt.Errorf("create audio source: %w", err), agenterr.CodeAudioSource)
	}

	a.mu.Lock()
	room := a.room
	a.track = track
	a.player = bridge.NewPlayer(track, nil)
	a.mu.Unlock()

	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   "ai-audio",
		Source: livekit.TrackSource_UNKNOWN,
	})
	if err != nil {
		track.Close()
		return agenterr.Wrap(fmt.Errorf("publish audio track: %w", err), agenterr.CodeTrackPublish)
	}
	pub.SetMuted(false)
	logging.Info(logging.CategoryAgent, "published outbound audio track muted=%v", pub.IsMuted())
	return nil
}

func (a *Agent) registerRealtimeHandlers() {
	a.rt.On(realtime.TypeSpeechStarted, func(realtime.Event) {
		a.relay.OnSpeechStarted()
	})
	a.rt.On(realtime.TypeSpeechStopped, func(realtime.Event) {
		a.relay.OnSpeechStopped()
	})
	a.rt.On(realtime.TypeInputTranscriptionCompleted, func(ev realtime.Event) {
		a.relay.OnUserTranscript(ev.Transcript)
	})
	a.rt.On(realtime.TypeResponseCreated, func(realtime.Event) {
		a.player.BeginResponse()
		a.relay.Reset()
	})
	a.rt.On(realtime.TypeResponseAudioTranscriptDelta, func(ev realtime.Event) {
		a.relay.OnAgentDelta(ev.Delta)
	})
	a.rt.On(realtime.TypeResponseAudioTranscriptDone, func(ev realtime.Event) {
		a.relay.OnAgentDone(ev.Transcript)
	})
	a.rt.On(realtime.TypeResponseAudioDelta, a.onAudioDelta)
	a.rt.On(realtime.TypeResponseDone, func(realtime.Event) {
		a.player.CompleteResponse()
	})
	a.rt.On(realtime.TypeError, func(ev realtime.Event) {
		msg := "unknown error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		a.relay.OnServiceError(msg)
	})
}

// onAudioDelta decodes one audio delta and appends it to the playback
// buffer. A bad delta is dropped; it never disturbs the stream.
func (a *Agent) onAudioDelta(ev realtime.Event) {
	pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
	if err != nil {
		logging.Warning(logging.CategoryAgent, "failed to decode audio delta: %v", err)
		return
	}
	a.player.Append(pcm)
}

// onTrackSubscribed bridges the interviewee's microphone upstream. Anything
// that is not a remote microphone track is ignored — in particular the
// agent's own synthesized audio, which would otherwise feed back.
func (a *Agent) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if a.shuttingDown.Load() {
		return
	}

	a.mu.Lock()
	room := a.room
	rt := a.rt
	a.mu.Unlock()
	if room == nil || rt == nil {
		// Too early; bridgeExistingTracks revisits publications once the
		// realtime client is up.
		return
	}

	identity := rp.Identity()
	if !bridge.ShouldBridge(track.Kind(), pub.Source(), identity, room.LocalParticipant.Identity()) {
		logging.Debug(logging.CategoryAgent, "ignoring track participant=%s kind=%s source=%s",
			identity, track.Kind(), pub.Source())
		return
	}

	a.ingressMu.Lock()
	defer a.ingressMu.Unlock()
	if _, exists := a.ingress[identity]; exists {
		logging.Warning(logging.CategoryAgent, "microphone already bridged participant=%s", identity)
		return
	}

	in, err := bridge.NewIngress(identity, rt)
	if err != nil {
		logging.Error(logging.CategoryAgent, "failed to create ingress participant=%s: %v", identity, err)
		return
	}
	a.ingress[identity] = in
	in.Start(track)
}

func (a *Agent) bridgeExistingTracks(rp *lksdk.RemoteParticipant) {
	for _, pub := range rp.TrackPublications() {
		if pub.Kind() != lksdk.TrackKindAudio {
			continue
		}
		remotePub, ok := pub.(*lksdk.RemoteTrackPublication)
		if !ok {
			continue
		}
		if !remotePub.IsSubscribed() {
			remotePub.SetSubscribed(true)
		}
		if tr := remotePub.Track(); tr != nil {
			if remoteTrack, ok := tr.(*webrtc.TrackRemote); ok {
				a.onTrackSubscribed(remoteTrack, remotePub, rp)
			}
		}
	}
}

func (a *Agent) removeIngress(identity string) {
	a.ingressMu.Lock()
	in, exists := a.ingress[identity]
	if exists {
		delete(a.ingress, identity)
	}
	a.ingressMu.Unlock()

	if exists {
		in.Stop()
		logging.Info(logging.CategoryAgent, "removed microphone ingress participant=%s", identity)
	}
}

func (a *Agent) reportFatal(err error) {
	select {
	case a.fatal <- err:
	default:
	}
}

// cleanup releases every session resource exactly once, regardless of how
// many shutdown paths fire: stop the playback ticker, cancel the microphone
// read loops, close the realtime socket, then leave the room.
func (a *Agent) cleanup() {
	a.cleanupOnce.Do(func() {
		a.shuttingDown.Store(true)
		logging.Info(logging.CategoryAgent, "cleaning up session")

		a.mu.Lock()
		player := a.player
		rt := a.rt
		track := a.track
		room := a.room
		a.mu.Unlock()

		if player != nil {
			player.Close()
		}

		a.ingressMu.Lock()
		ins := make([]*bridge.Ingress, 0, len(a.ingress))
		for _, in := range a.ingress {
			ins = append(ins, in)
		}
		a.ingress = make(map[string]*bridge.Ingress)
		a.ingressMu.Unlock()
		for _, in := range ins {
			in.Stop()
		}

		if rt != nil {
			rt.Close()
		}
		if track != nil {
			track.Close()
		}
		if room != nil {
			room.Disconnect()
		}
		logging.Info(logging.CategoryAgent, "session cleanup complete")
	})
}

// dataChannelPublisher sends transcript payloads over the room's reliable
// data channel.
type dataChannelPublisher struct {
	room *lksdk.Room
}

func (p *dataChannelPublisher) PublishData(payload []byte) error {
	return p.room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishReliable(true),
	)
}
