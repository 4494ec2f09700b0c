package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

const elevenLabsWSBase = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"

// PlaybackOpener opens a sink for raw 16 bit PCM. Close blocks until the
// audio finished playing.
type PlaybackOpener interface {
	Open(ctx context.Context) (io.WriteCloser, error)
}

// ElevenLabsSpeaker streams text to the ElevenLabs websocket TTS API and
// plays the returned PCM.
type ElevenLabsSpeaker struct {
	apiKey  string
	voiceID string
	modelID string
	wsBase  string
	player  PlaybackOpener
}

func NewElevenLabsSpeaker(cfg model.VoiceConfig, player PlaybackOpener) (*ElevenLabsSpeaker, error) {
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	if strings.TrimSpace(cfg.ElevenLabsVoiceID) == "" {
		return nil, fmt.Errorf("elevenlabs voice id is required")
	}
	if player == nil {
		return nil, fmt.Errorf("audio player is nil")
	}
	return &ElevenLabsSpeaker{
		apiKey:  strings.TrimSpace(cfg.ElevenLabsAPIKey),
		voiceID: strings.TrimSpace(cfg.ElevenLabsVoiceID),
		modelID: strings.TrimSpace(cfg.ElevenLabsModel),
		wsBase:  elevenLabsWSBase,
		player:  player,
	}, nil
}

// WithWSBaseURL overrides the websocket endpoint.
func (e *ElevenLabsSpeaker) WithWSBaseURL(base string) *ElevenLabsSpeaker {
	if base = strings.TrimSpace(base); base != "" {
		e.wsBase = base
	}
	return e
}

type ttsChunk struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Say returns once the whole utterance has been played.
func (e *ElevenLabsSpeaker) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	wsURL, err := e.streamURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("elevenlabs dial: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	for _, msg := range []map[string]any{
		{"text": " "},
		{"text": text + " ", "flush": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("elevenlabs send: %w", err)
		}
	}

	sink, err := e.player.Open(ctx)
	if err != nil {
		return fmt.Errorf("open audio player: %w", err)
	}

	bytes := 0
	readErr := func() error {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				return fmt.Errorf("elevenlabs read: %w", err)
			}
			var chunk ttsChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				return fmt.Errorf("elevenlabs: %s: %s", chunk.Error, chunk.Message)
			}
			if chunk.Audio != "" {
				audio, err := base64.StdEncoding.DecodeString(chunk.Audio)
				if err == nil && len(audio) > 0 {
					if _, err := sink.Write(audio); err != nil {
						return fmt.Errorf("audio player write: %w", err)
					}
					bytes += len(audio)
				}
			}
			if chunk.IsFinal {
				return nil
			}
		}
	}()

	closeErr := sink.Close()
	logx.Debug().Int("audio_bytes", bytes).Msg("TTS playback finished")
	return errors.Join(readErr, closeErr)
}

func (e *ElevenLabsSpeaker) streamURL() (string, error) {
	u, err := url.Parse(strings.ReplaceAll(e.wsBase, "{voice_id}", url.PathEscape(e.voiceID)))
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	q := u.Query()
	if q.Get("model_id") == "" && e.modelID != "" {
		q.Set("model_id", e.modelID)
	}
	if q.Get("output_format") == "" {
		q.Set("output_format", "pcm_24000")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CommandPlayer pipes PCM into an external player process, one process per utterance.
type CommandPlayer struct {
	name string
	args []string
}

// NewCommandPlayer parses a whitespace separated command line such as
// "aplay -q -f S16_LE -r 24000 -c 1".
func NewCommandPlayer(cmdline string) (*CommandPlayer, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("audio player command is empty")
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("audio player %q: %w", fields[0], err)
	}
	return &CommandPlayer{name: fields[0], args: fields[1:]}, nil
}

func (p *CommandPlayer) Open(ctx context.Context) (io.WriteCloser, error) {
	cmd := exec.CommandContext(ctx, p.name, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &playback{stdin: stdin, cmd: cmd}, nil
}

type playback struct {
	stdin io.WriteCloser
	cmd   *exec.Cmd
}

func (p *playback) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *playback) Close() error {
	_ = p.stdin.Close()
	return p.cmd.Wait()
}

var _ model.SpeechOutput = (*ElevenLabsSpeaker)(nil)
