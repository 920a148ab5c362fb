package dispense

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meddispense/m/domain"
	"meddispense/m/internal/robot"
)

// tcpController answers the controller protocol on a loopback socket and
// keeps the command names it was sent.
type tcpController struct {
	addr string

	mu       sync.Mutex
	commands []string
}

func (c *tcpController) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

func startTCPController(t *testing.T, delays map[string]time.Duration) *tcpController {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctrl := &tcpController{addr: ln.Addr().String()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var header [4]byte
			if _, err := io.ReadFull(conn, header[:]); err != nil {
				return
			}
			body := make([]byte, binary.LittleEndian.Uint32(header[:]))
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
			var req struct {
				Command string `json:"command"`
			}
			if err := json.Unmarshal(body, &req); err != nil {
				return
			}
			ctrl.mu.Lock()
			ctrl.commands = append(ctrl.commands, req.Command)
			ctrl.mu.Unlock()

			time.Sleep(delays[req.Command])

			ret := []any{}
			if req.Command == "VISION_PICK" {
				ret = []any{true, "ANY", "RED"}
			}
			payload, _ := json.Marshal(map[string]any{
				"command":        req.Command,
				"status":         "OK",
				"message":        "",
				"list_ret_param": ret,
			})
			frame := make([]byte, 4+len(payload))
			binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
			copy(frame[4:], payload)
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return ctrl
}

func TestDispenseOutlivesCancelledRequest(t *testing.T) {
	ctrl := startTCPController(t, map[string]time.Duration{"PLACE_FROM_POSE": 300 * time.Millisecond})

	cfg := robot.DefaultConfig()
	cfg.Address = ctrl.addr
	log := &memLog{}
	w := New(testCatalog, log, nil, robot.TCPDialer(2*time.Second), cfg, zap.NewNop())
	w.now = func() time.Time { return fixedNow }

	// The browser goes away while the arm is mid-place.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	got, err := w.Dispense(ctx, []domain.RequestItem{{MedicationName: "Paracetamol", Dosage: "500mg", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{success("Paracetamol", "500mg")}, got)
	assert.Len(t, log.events, 1)

	assert.Equal(t, []string{
		"CALIBRATE", "UPDATE_TOOL",
		"MOVE_POSE", "VISION_PICK", "PLACE_FROM_POSE", "GRASP_WITH_TOOL", "MOVE_POSE",
		"MOVE_TO_HOME_POSE", "SET_LEARNING_MODE",
	}, ctrl.seen())
}
