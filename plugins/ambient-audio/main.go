//go:build unix

// Package main provides the ambient audio plugin. It starts and stops a
// looping background track with whatever command-line player the host has.
// Each invocation is a fresh process, so the player's PID is kept in a file.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// params are the optional start parameters.
type params struct {
	Track string `json:"track"`
}

type status struct {
	Playing bool `json:"playing"`
	PID     int  `json:"pid,omitempty"`
}

// actionHandler handles one action and returns the current status.
type actionHandler func(p params) (status, error)

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"start":  start,
	"stop":   stop,
	"status": current,
}

const defaultTrack = "ambient.mp3"

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var p params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	st, err := handler(p)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}
	writeSuccessResponse(st)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response with the player status.
func writeSuccessResponse(st status) {
	data, _ := json.Marshal(st)
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

func pidFile() string {
	return filepath.Join(os.TempDir(), "mudra-ambient-audio.pid")
}

// running returns the PID of a live player, or 0.
func running() int {
	data, err := os.ReadFile(pidFile())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0
	}
	return pid
}

func current(params) (status, error) {
	pid := running()
	return status{Playing: pid != 0, PID: pid}, nil
}

// playerCommand picks a looping player available on this host.
func playerCommand(track string) (*exec.Cmd, error) {
	if runtime.GOOS == "darwin" {
		// afplay has no loop flag; a shell loop keeps it going.
		return exec.Command("sh", "-c", `while true; do afplay "$0"; done`, track), nil
	}
	if path, err := exec.LookPath("ffplay"); err == nil {
		return exec.Command(path, "-nodisp", "-loglevel", "quiet", "-loop", "0", track), nil
	}
	if path, err := exec.LookPath("mpv"); err == nil {
		return exec.Command(path, "--no-video", "--really-quiet", "--loop=inf", track), nil
	}
	return nil, errors.New("no audio player found (need ffplay or mpv)")
}

func start(p params) (status, error) {
	if pid := running(); pid != 0 {
		return status{Playing: true, PID: pid}, nil
	}

	track := p.Track
	if track == "" {
		exe, err := os.Executable()
		if err != nil {
			return status{}, err
		}
		track = filepath.Join(filepath.Dir(exe), defaultTrack)
	}
	if _, err := os.Stat(track); err != nil {
		return status{}, fmt.Errorf("track: %w", err)
	}

	cmd, err := playerCommand(track)
	if err != nil {
		return status{}, err
	}
	// Detach so the player outlives this short-lived plugin process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return status{}, err
	}
	pid := cmd.Process.Pid
	if err := os.WriteFile(pidFile(), []byte(strconv.Itoa(pid)), 0644); err != nil {
		cmd.Process.Kill()
		return status{}, err
	}
	cmd.Process.Release()
	return status{Playing: true, PID: pid}, nil
}

func stop(params) (status, error) {
	defer os.Remove(pidFile())

	pid := running()
	if pid == 0 {
		return status{}, nil
	}
	// Kill the whole process group so the darwin shell loop goes too.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
			return status{}, err
		}
	}
	return status{}, nil
}
