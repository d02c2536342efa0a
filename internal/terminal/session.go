package terminal

import (
	"encoding/json"
	"io"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forgeterm/terminal/internal/am"
)

// ptyConn is the minimal surface a spawned PTY needs to expose: stdin/stdout
// as a stream plus a resize hook, the rest handled by the platform-specific
// startPTY/startPTYWithShell/resizePTY functions.
type ptyConn = io.ReadWriteCloser

// cwdRegistry remembers the last directory a tab's bridge observed, keyed by
// tab id, so a reconnect can restore it even though each connection gets a
// fresh bridge and a fresh shell process.
var cwdRegistry = struct {
	mu   sync.Mutex
	dirs map[string]string
}{dirs: make(map[string]string)}

func rememberCWD(tabID, dir string) {
	cwdRegistry.mu.Lock()
	defer cwdRegistry.mu.Unlock()
	cwdRegistry.dirs[tabID] = dir
}

func lastKnownCWD(tabID string) string {
	cwdRegistry.mu.Lock()
	defer cwdRegistry.mu.Unlock()
	return cwdRegistry.dirs[tabID]
}

const (
	writeDeadline     = 10 * time.Second
	flushTickInterval = 200 * time.Millisecond
	flushThreshold    = 750 * time.Millisecond
	shellKillGrace    = 2 * time.Second
)

// clientMessage is the shape of inbound text (JSON) frames.
type clientMessage struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// serverControlMessage is the shape of outbound text (JSON) control frames.
type serverControlMessage struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
	Dir  string `json:"dir,omitempty"`
}

// authURLPattern recognizes OAuth device/browser URLs printed by CLI tools
// during an interactive login flow.
var authURLPattern = regexp.MustCompile(`https?://[^\s]+`)

// bridge owns one PTY and one WebSocket connection for the lifetime of a
// terminal tab. It is the only writer to its PTY and its socket.
type bridge struct {
	tabID  string
	shell  string
	conn   *websocket.Conn
	ptmx   ptyConn
	logger *am.LLMLogger

	autoresponder *Autoresponder

	mu         sync.Mutex
	writeMu    sync.Mutex
	lastCWD    string
	closeOnce  sync.Once
	closeCode  int
	closeCause string

	recentOutput []byte
}

func newBridge(tabID, shell string, conn *websocket.Conn, ptmx ptyConn, logger *am.LLMLogger) *bridge {
	return &bridge{
		tabID:         tabID,
		shell:         shell,
		conn:          conn,
		ptmx:          ptmx,
		logger:        logger,
		autoresponder: NewAutoresponder(),
	}
}

// seedCWD records a caller-supplied initial working directory so a
// subsequent reconnect can restore it even if no prompt has been seen yet.
func (b *bridge) seedCWD(shell, dir string) {
	b.mu.Lock()
	b.lastCWD = dir
	b.mu.Unlock()
}

// Run drives the bridge until the socket or the PTY closes. It blocks until
// the session ends.
func (b *bridge) Run() {
	defer b.ptmx.Close()
	defer b.conn.Close()

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer stop()
		b.pumpPTYToSocket()
	}()

	go func() {
		defer wg.Done()
		defer stop()
		b.pumpSocketToPTY()
	}()

	go b.tickFlushAndAutorespond(done)

	wg.Wait()

	if b.logger != nil {
		b.logger.EndConversation()
	}

	log.Printf("[Terminal] Bridge closed for tab %s (code=%d cause=%q)", b.tabID, b.closeCode, b.closeCause)
}

// pumpPTYToSocket reads PTY output and forwards it as binary WebSocket
// frames, mirroring every chunk into C4 as assistant output when a
// conversation is active, and feeding the autoresponder's rolling window.
func (b *bridge) pumpPTYToSocket() {
	buf := make([]byte, 32*1024)
	for {
		n, err := b.ptmx.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			b.handleOutputChunk(chunk)
		}
		if err != nil {
			if err == io.EOF {
				b.fail(CloseShellExit, "shell exited")
			} else {
				b.fail(CloseReadError, "pty read error: "+err.Error())
			}
			return
		}
	}
}

func (b *bridge) handleOutputChunk(chunk []byte) {
	if err := b.writeBinary(chunk); err != nil {
		log.Printf("[Terminal] write to socket failed for tab %s: %v", b.tabID, err)
		b.fail(CloseTimeout, "write deadline exceeded")
		return
	}

	if b.logger != nil {
		b.logger.AddOutput(string(chunk))
	}

	cleaned := am.CleanUserInput(string(chunk))
	b.autoresponder.Feed([]byte(cleaned))

	b.mu.Lock()
	b.recentOutput = append(b.recentOutput, chunk...)
	if len(b.recentOutput) > 4096 {
		b.recentOutput = b.recentOutput[len(b.recentOutput)-4096:]
	}
	recent := string(b.recentOutput)
	b.mu.Unlock()

	if dir := ExtractCWD(recent); dir != "" {
		b.mu.Lock()
		changed := dir != b.lastCWD
		b.lastCWD = dir
		b.mu.Unlock()
		if changed {
			rememberCWD(b.tabID, dir)
			b.sendControl(serverControlMessage{Type: "cwd", Dir: dir})
		}
	}

	if url := authURLPattern.FindString(cleaned); url != "" {
		b.sendControl(serverControlMessage{Type: "auth_url", URL: url})
	}
}

// pumpSocketToPTY reads inbound WebSocket frames and forwards binary frames
// to the PTY's stdin, handling JSON resize control frames inline. Malformed
// frames are dropped rather than treated as a fatal protocol error.
func (b *bridge) pumpSocketToPTY() {
	for {
		msgType, data, err := b.conn.ReadMessage()
		if err != nil {
			b.fail(CloseNormal, "socket closed: "+err.Error())
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if _, err := b.ptmx.Write(data); err != nil {
				log.Printf("[Terminal] pty write failed for tab %s: %v", b.tabID, err)
				continue
			}
			if b.logger != nil {
				b.logger.AddUserInput(string(data))
			}
		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue // protocol violation: drop the frame, keep the connection
			}
			switch msg.Type {
			case "resize":
				if err := resizePTY(b.ptmx, msg.Cols, msg.Rows); err != nil {
					log.Printf("[Terminal] resize failed for tab %s: %v", b.tabID, err)
				}
			default:
				// unknown control message type: ignore
			}
		}
	}
}

// tickFlushAndAutorespond runs the periodic work a per-tab actor owns: C4's
// output flush timer and the autorespond quiescence check.
func (b *bridge) tickFlushAndAutorespond(done <-chan struct{}) {
	ticker := time.NewTicker(flushTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if b.logger != nil && b.logger.ShouldFlushOutput(flushThreshold) {
				b.logger.FlushOutput()
			}
			if reply := b.autoresponder.Check(); reply != nil {
				if _, err := b.ptmx.Write(reply); err == nil {
					b.autoresponder.NoteOwnSend()
				}
			}
		}
	}
}

func (b *bridge) writeBinary(data []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return b.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (b *bridge) sendControl(msg serverControlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = b.conn.WriteMessage(websocket.TextMessage, data)
}

// fail records the reason the bridge is tearing down and sends a close frame
// with the appropriate reconnect-eligibility code. Only the first call takes
// effect.
func (b *bridge) fail(code int, cause string) {
	b.closeOnce.Do(func() {
		b.closeCode = code
		b.closeCause = cause
		closeWithCode(b.conn, code, cause)
	})
}
