package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Chative-voice-agent/server/internal/agent/model"
)

type line struct {
	text string
	err  error
}

// ConsoleListener reads caller utterances line by line. A single reader
// goroutine feeds Listen so a cancelled Listen never loses input.
type ConsoleListener struct {
	out    io.Writer
	prompt string
	once   sync.Once
	in     *bufio.Scanner
	lines  chan line
}

func NewConsoleListener(in io.Reader, out io.Writer) *ConsoleListener {
	return &ConsoleListener{
		out:    out,
		prompt: "You: ",
		in:     bufio.NewScanner(in),
		lines:  make(chan line),
	}
}

func (l *ConsoleListener) pump() {
	defer close(l.lines)
	for l.in.Scan() {
		l.lines <- line{text: l.in.Text()}
	}
	if err := l.in.Err(); err != nil {
		l.lines <- line{err: err}
	}
}

// Listen returns the next input line, io.EOF once the input is closed.
func (l *ConsoleListener) Listen(ctx context.Context) (string, error) {
	l.once.Do(func() { go l.pump() })
	if l.out != nil && l.prompt != "" {
		fmt.Fprint(l.out, l.prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case ln, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		if ln.err != nil {
			return "", ln.err
		}
		return strings.TrimSpace(ln.text), nil
	}
}

// ConsoleSpeaker prints agent lines.
type ConsoleSpeaker struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleSpeaker(out io.Writer) *ConsoleSpeaker {
	return &ConsoleSpeaker{out: out}
}

func (s *ConsoleSpeaker) Say(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "Agent: %s\n", text)
	return err
}

// Tee speaks through every output in order and returns the first error.
type Tee []model.SpeechOutput

func (t Tee) Say(ctx context.Context, text string) error {
	var first error
	for _, o := range t {
		if err := o.Say(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ model.SpeechInput  = (*ConsoleListener)(nil)
	_ model.SpeechOutput = (*ConsoleSpeaker)(nil)
	_ model.SpeechOutput = Tee(nil)
)
