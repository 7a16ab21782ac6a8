// Package terminal renders the comparison screen on a line-oriented terminal and
// answers the permission, gallery and camera prompts over the same input.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/image-compare/internal/permission"
	"github.com/example/image-compare/internal/screen"
)

// ErrInputClosed is returned by a prompt once the input stream has ended.
var ErrInputClosed = errors.New("terminal: input closed")

const (
	loaderLine     = "Comparing images..."
	loaderInterval = 100 * time.Millisecond
	helpText       = `Commands:
  1, gallery [1|2]  pick an image from the gallery (default slot 1)
  2, camera [1|2]   take a photo (default slot 2)
  c, compare        compare both images
  v, view           show the screen again
  h, help           show this help
  q, quit           leave`
)

// Screen is the subset of the controller a session drives.
type Screen interface {
	RequestInitialPermissions(ctx context.Context)
	SelectFromGallery(ctx context.Context, slot screen.Slot)
	CaptureFromCamera(ctx context.Context, slot screen.Slot)
	SubmitComparisonAsync(ctx context.Context) <-chan struct{}
	View() screen.View
}

// Session is one interactive terminal. It is the screen's Notifier and the prompter
// for permissions, gallery choices and capture confirmation.
type Session struct {
	in     io.Reader
	logger *zap.Logger

	outMu sync.Mutex
	out   io.Writer

	startOnce sync.Once
	lines     chan string
	scanned   chan struct{}

	stopOnce sync.Once
	done     chan struct{}
}

// New builds a session reading commands from in and writing to out.
func New(in io.Reader, out io.Writer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		in:     in,
		out:    out,
		logger: logger.Named("terminal"),
		done:   make(chan struct{}),
	}
}

// Run asks for the initial permissions, then reads commands until quit, end of input
// or ctx is done.
func (s *Session) Run(ctx context.Context, scr Screen) error {
	defer s.stop()

	scr.RequestInitialPermissions(ctx)
	s.render(scr.View())

	for {
		s.printf("> ")
		line, err := s.readLine(ctx)
		if err != nil {
			s.println()
			if errors.Is(err, ErrInputClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		quit := s.dispatch(ctx, scr, strings.Fields(line))
		if quit {
			return nil
		}
	}
}

func (s *Session) dispatch(ctx context.Context, scr Screen, fields []string) bool {
	if len(fields) == 0 {
		return false
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "1", "gallery":
		slot, ok := s.slotArg(args, screen.SlotImage1)
		if !ok {
			return false
		}
		scr.SelectFromGallery(ctx, slot)
		s.render(scr.View())
	case "2", "camera":
		slot, ok := s.slotArg(args, screen.SlotImage2)
		if !ok {
			return false
		}
		scr.CaptureFromCamera(ctx, slot)
		s.render(scr.View())
	case "c", "compare":
		s.awaitComparison(ctx, scr, scr.SubmitComparisonAsync(ctx))
		s.render(scr.View())
	case "v", "view":
		s.render(scr.View())
	case "h", "help":
		s.println(helpText)
	case "q", "quit", "exit":
		return true
	default:
		s.printf("Unknown command %q. Type h for help.\n", cmd)
	}
	return false
}

// awaitComparison blocks input until the submission settles, showing the loader
// once the controller reports it.
func (s *Session) awaitComparison(ctx context.Context, scr Screen, done <-chan struct{}) {
	ticker := time.NewTicker(loaderInterval)
	defer ticker.Stop()

	shown := false
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			<-done
			return
		case <-ticker.C:
			if !shown && scr.View().LoaderVisible {
				s.println(loaderLine)
				shown = true
			}
		}
	}
}

func (s *Session) slotArg(args []string, def screen.Slot) (screen.Slot, bool) {
	if len(args) == 0 {
		return def, true
	}
	switch args[0] {
	case "1":
		return screen.SlotImage1, true
	case "2":
		return screen.SlotImage2, true
	default:
		s.printf("Unknown slot %q. Use 1 or 2.\n", args[0])
		return 0, false
	}
}

// Notify prints a notice. It is safe to call from the comparison goroutine.
func (s *Session) Notify(n screen.Notice) {
	s.printf("[%s] %s\n", n.Title, n.Message)
}

// PromptPermission asks whether capability may be used. Anything but yes is a refusal.
func (s *Session) PromptPermission(ctx context.Context, capability permission.Capability) (bool, error) {
	s.printf("Allow access to the %s? [y/N]: ", capability)
	return s.readYesNo(ctx, false)
}

// ChooseImage lists names and reads a 1-based choice. An empty line cancels.
func (s *Session) ChooseImage(ctx context.Context, names []string) (string, error) {
	s.outMu.Lock()
	for i, name := range names {
		fmt.Fprintf(s.out, "  %d) %s\n", i+1, name)
	}
	s.outMu.Unlock()

	for {
		s.printf("Choose an image [1-%d, empty to cancel]: ", len(names))
		line, err := s.readLine(ctx)
		if errors.Is(err, ErrInputClosed) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(names) {
			s.printf("Invalid choice %q.\n", line)
			continue
		}
		return names[n-1], nil
	}
}

// ConfirmCapture asks whether to keep a captured frame. An empty answer keeps it.
func (s *Session) ConfirmCapture(ctx context.Context, width, height int) (bool, error) {
	s.printf("Captured a %dx%d photo. Use it? [Y/n]: ", width, height)
	return s.readYesNo(ctx, true)
}

func (s *Session) readYesNo(ctx context.Context, def bool) (bool, error) {
	line, err := s.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLine returns the next input line. Lines are read on a dedicated goroutine so a
// cancelled context is noticed while waiting on input.
func (s *Session) readLine(ctx context.Context) (string, error) {
	s.startOnce.Do(func() {
		s.lines = make(chan string)
		s.scanned = make(chan struct{})
		go s.scan()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return line, nil
	}
}

// scan feeds input lines to readLine until the input ends or the session stops.
func (s *Session) scan() {
	defer close(s.scanned)
	defer close(s.lines)
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Error("failed to read input", zap.Error(err))
	}
}

func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Session) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) println(args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintln(s.out, args...)
}
