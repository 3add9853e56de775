package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var spinFrames = [...]string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinInterval = 90 * time.Millisecond

// Spin runs fn while a status line animates on stderr. stdout is left alone
// so results can be piped. Off a terminal msg is printed once instead.
func Spin(msg string, fn func() error) error {
	s := newSpinner(os.Stderr, msg, isTerminal(os.Stderr))
	s.start()
	defer s.stop()
	return fn()
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type spinner struct {
	w    io.Writer
	msg  string
	anim bool

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newSpinner(w io.Writer, msg string, anim bool) *spinner {
	return &spinner{w: w, msg: msg, anim: anim}
}

func (s *spinner) start() {
	if !s.anim {
		fmt.Fprintln(s.w, Hint(s.msg+"…"))
		return
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
}

func (s *spinner) loop() {
	defer close(s.done)
	tick := time.NewTicker(spinInterval)
	defer tick.Stop()
	for i := 0; ; i++ {
		fmt.Fprintf(s.w, "\r%s %s", Accent.Render(spinFrames[i%len(spinFrames)]), s.msg)
		select {
		case <-s.quit:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-tick.C:
		}
	}
}

// stop clears the line and waits for the animation to exit. It is a no-op
// when nothing is animating.
func (s *spinner) stop() {
	if s.quit == nil {
		return
	}
	s.once.Do(func() { close(s.quit) })
	<-s.done
}
