package main

import (
	"os"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	"github.com/Chative-voice-agent/server/internal/agent/voice"
)

func voiceListener() model.SpeechInput {
	return voice.NewConsoleListener(os.Stdin, os.Stdout)
}

// newSpeaker selects the speech output. ElevenLabs output can echo agent
// lines to the console as well.
func newSpeaker(cfg model.VoiceConfig) (model.SpeechOutput, error) {
	console := voice.NewConsoleSpeaker(os.Stdout)
	if cfg.Output != "elevenlabs" {
		return console, nil
	}

	player, err := voice.NewCommandPlayer(cfg.PlayerCommand)
	if err != nil {
		return nil, err
	}
	tts, err := voice.NewElevenLabsSpeaker(cfg, player)
	if err != nil {
		return nil, err
	}
	if cfg.EchoAgentToConsole {
		return voice.Tee{console, tts}, nil
	}
	return tts, nil
}
