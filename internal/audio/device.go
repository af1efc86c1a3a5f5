package audio

import (
	"errors"
	"os/exec"
	"sync"

	logx "schoolbell/pkg/logx"
)

// Device drives the physical audio output. It supports exactly one active
// stream: Play while busy is a caller error.
//
// Play returns a completion channel that receives the terminal error (nil on
// normal end of playback) exactly once. Stop hard-stops the active stream;
// the in-flight completion channel then yields the kill error.
type Device interface {
	Play(path string) (done <-chan error, err error)
	Stop() error
}

// ExecDevice plays audio by spawning an external player process
// (aplay/mpg123/ffplay — whatever the host has configured). This keeps the
// daemon free of audio-codec cgo on embedded images.
type ExecDevice struct {
	command string
	args    []string
	log     logx.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewExecDevice(command string, args []string, log logx.Logger) *ExecDevice {
	if command == "" {
		command = "aplay"
	}
	return &ExecDevice{command: command, args: args, log: log}
}

func (d *ExecDevice) Play(path string) (<-chan error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return nil, errors.New("audio: device busy")
	}

	args := append(append([]string(nil), d.args...), path)
	cmd := exec.Command(d.command, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	d.cmd = cmd
	d.log.Debug("player process started", logx.String("cmd", d.command), logx.String("path", path), logx.Int("pid", cmd.Process.Pid))

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		d.mu.Lock()
		d.cmd = nil
		d.mu.Unlock()
		done <- err
	}()
	return done, nil
}

func (d *ExecDevice) Stop() error {
	d.mu.Lock()
	cmd := d.cmd
	d.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
