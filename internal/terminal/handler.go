// Package terminal bridges a browser WebSocket connection to a PTY-backed
// shell subprocess, observing the byte stream for the AM subsystem along the
// way.
package terminal

import (
	"log"
	"net/http"
	"os/exec"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forgeterm/terminal/internal/am"
	"github.com/forgeterm/terminal/internal/config"
)

// WebSocket close codes the bridge sends (the standard normal-closure code
// plus application codes in the 4000 range), used to tell the client whether
// it should attempt to reconnect.
const (
	CloseNormal    = 1000 // graceful close, no reconnect
	CloseShellExit = 4000 // PTY process exited, no reconnect
	CloseTimeout   = 4001 // write deadline exceeded, no reconnect
	CloseReadError = 4002 // PTY read failed, no reconnect
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler serves the /ws terminal endpoint.
type Handler struct {
	amSystem *am.System
}

// NewHandler builds a terminal handler wired to the given AM system. amSystem
// may be nil, in which case byte mirroring into AM is skipped.
func NewHandler(amSystem *am.System) *Handler {
	return &Handler{amSystem: amSystem}
}

// HandleWebSocket upgrades the request and runs a bridge for its lifetime.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shell := q.Get("shell")
	distro := q.Get("distro")
	home := q.Get("home")
	if shell == "" {
		if cfg, err := config.LoadShellConfig(); err == nil {
			shell = cfg.ShellType
			if distro == "" {
				distro = cfg.WSLDistro
			}
			if home == "" {
				home = cfg.WSLHomePath
			}
		} else {
			shell = defaultShell()
		}
	}
	workdir := q.Get("workdir")
	tabID := q.Get("tabId")
	if tabID == "" {
		tabID = r.RemoteAddr
	}
	autorespond := q.Get("autorespond") != "false"

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Terminal] Upgrade failed: %v", err)
		return
	}

	ptmx, err := spawnShell(shell, distro, home, workdir)
	if err != nil {
		log.Printf("[Terminal] Failed to spawn shell %q: %v", shell, err)
		closeWithCode(conn, CloseShellExit, "failed to start shell: "+err.Error())
		return
	}

	if err := config.SaveShellConfig(config.ShellConfig{
		ShellType:   shell,
		WSLDistro:   distro,
		WSLHomePath: home,
	}); err != nil {
		log.Printf("[Terminal] Failed to persist shell config: %v", err)
	}

	var logger *am.LLMLogger
	if h.amSystem != nil {
		logger = h.amSystem.GetLLMLogger(tabID)
		logger.SetAutoRespond(autorespond)
	}

	bridge := newBridge(tabID, shell, conn, ptmx, logger)
	bridge.autoresponder.SetEnabled(autorespond)

	if dir := lastKnownCWD(tabID); dir != "" {
		bridge.seedCWD(shell, dir)
		if cmd := CDCommand(shell, dir); cmd != "" {
			if _, err := ptmx.Write([]byte(cmd)); err == nil {
				bridge.autoresponder.NoteOwnSend()
			}
		}
	} else if workdir != "" {
		bridge.seedCWD(shell, workdir)
	}

	bridge.Run()
}

func defaultShell() string {
	return "bash"
}

// commandFor resolves the shell query-string value to a concrete binary and
// argument list. WSL shells are routed through wsl.exe, optionally pinned to
// a distro; a home path is passed to wsl.exe as its --cd start directory.
func commandFor(shell, distro, home string) (string, []string) {
	switch shell {
	case "cmd":
		return "cmd.exe", nil
	case "powershell":
		return "powershell.exe", []string{"-NoLogo"}
	case "wsl":
		args := []string{}
		if distro != "" {
			args = append(args, "-d", distro)
		}
		if home != "" {
			args = append(args, "--cd", home)
		}
		return "wsl.exe", args
	case "zsh":
		return "zsh", nil
	default:
		return "bash", nil
	}
}

func spawnShell(shell, distro, home, workdir string) (ptyConn, error) {
	bin, args := commandFor(shell, distro, home)

	if workdir != "" {
		cmd := exec.Command(bin, args...)
		cmd.Dir = workdir
		return startPTY(cmd)
	}

	return startPTYWithShell(bin, args)
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline))
	_ = conn.Close()
}
