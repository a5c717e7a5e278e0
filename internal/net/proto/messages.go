package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/invopop/jsonschema"

	"github.com/Jamesmykil253/MoBa-sub001/internal/arena"
	"github.com/Jamesmykil253/MoBa-sub001/internal/sim"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client message type identifiers.
const (
	TypeInput     = "input"
	TypeHeartbeat = "heartbeat"
)

// Server message type identifiers.
const (
	TypeInputAck    = "inputAck"
	TypeInputReject = "inputReject"
	TypeSnapshot    = "snapshot"
	TypeCorrection  = "correction"
	TypeCastReject  = "castReject"
)

// RejectMalformed is echoed when a payload decodes but carries no command
// the server understands. It is distinct from the input-buffer rejections,
// which arrive as sim.Reject* reasons.
const RejectMalformed = "malformed"

// ClientMessage captures an inbound websocket message from the client. A
// nil Pos means the client made no position claim this command.
type ClientMessage struct {
	Ver          int         `json:"ver,omitempty"`
	Type         string      `json:"type"`
	Seq          uint64      `json:"seq,omitempty"`
	Tick         uint64      `json:"tick,omitempty"`
	Move         [2]float64  `json:"move"`
	Jump         bool        `json:"jump,omitempty"`
	Attack       bool        `json:"attack,omitempty"`
	Ability      string      `json:"ability,omitempty"`
	Aim          [3]float64  `json:"aim"`
	ObservedTick uint64      `json:"observedTick,omitempty"`
	Pos          *[3]float64 `json:"pos,omitempty"`
	SentAt       int64       `json:"sentAt,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured
// message, rejecting protocol revisions the server does not speak.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// Command converts an input message into the simulation command it carries.
// Connection and entity identity are stamped by the hub when the command is
// accepted; the wire layer never supplies routing.
func Command(msg ClientMessage) (sim.InputCommand, bool) {
	if msg.Type != TypeInput {
		return sim.InputCommand{}, false
	}
	cmd := sim.InputCommand{
		Seq:          msg.Seq,
		ClientTick:   msg.Tick,
		Move:         mgl64.Vec2{msg.Move[0], msg.Move[1]},
		Jump:         msg.Jump,
		Attack:       msg.Attack,
		AbilityID:    msg.Ability,
		Aim:          mgl64.Vec3{msg.Aim[0], msg.Aim[1], msg.Aim[2]},
		ObservedTick: msg.ObservedTick,
		SentAt:       msg.SentAt,
	}
	if msg.Pos != nil {
		cmd.ClaimedPos = mgl64.Vec3{msg.Pos[0], msg.Pos[1], msg.Pos[2]}
		cmd.HasClaim = true
	}
	return cmd, true
}

// InputAckFrame acknowledges an accepted command. Tick is the server tick
// the command was queued against.
type InputAckFrame struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Tick uint64 `json:"tick,omitempty"`
}

// EncodeInputAck renders a command acknowledgement.
func EncodeInputAck(seq, tick uint64) ([]byte, error) {
	return json.Marshal(InputAckFrame{Ver: Version, Type: TypeInputAck, Seq: seq, Tick: tick})
}

// InputRejectFrame notifies the client that a command was refused. Retry is
// set for transient reasons where resubmitting the same intent can succeed.
type InputRejectFrame struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

// EncodeInputReject renders a command rejection.
func EncodeInputReject(seq uint64, reason string, retry bool) ([]byte, error) {
	return json.Marshal(InputRejectFrame{Ver: Version, Type: TypeInputReject, Seq: seq, Reason: reason, Retry: retry})
}

// RetryableReject reports whether a rejection reason is worth resubmitting
// the same command for. Stale and duplicate commands are superseded by the
// client's next command, not retried.
func RetryableReject(reason string) bool {
	return reason == sim.RejectQueueFull || reason == sim.RejectThrottled
}

// HeartbeatFrame echoes liveness timing back to the client.
type HeartbeatFrame struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// EncodeHeartbeat renders a heartbeat acknowledgement.
func EncodeHeartbeat(serverTime time.Time, clientTime int64, rtt time.Duration) ([]byte, error) {
	return json.Marshal(HeartbeatFrame{
		Ver:        Version,
		Type:       TypeHeartbeat,
		ServerTime: serverTime.UnixMilli(),
		ClientTime: clientTime,
		RTTMillis:  rtt.Milliseconds(),
	})
}

// SnapshotFrame carries one authoritative world snapshot. Keyframe marks
// the full-state frame sent on subscribe; periodic broadcasts leave it
// unset.
type SnapshotFrame struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	Keyframe   bool   `json:"keyframe,omitempty"`
	arena.Snapshot
}

// EncodeSnapshot renders a snapshot broadcast frame.
func EncodeSnapshot(snap arena.Snapshot, serverTime time.Time, keyframe bool) ([]byte, error) {
	return json.Marshal(SnapshotFrame{
		Ver:        Version,
		Type:       TypeSnapshot,
		ServerTime: serverTime.UnixMilli(),
		Keyframe:   keyframe,
		Snapshot:   snap,
	})
}

// CorrectionFrame pushes authoritative state to a client whose prediction
// drifted.
type CorrectionFrame struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	arena.Correction
}

// EncodeCorrection renders a reconciliation push.
func EncodeCorrection(c arena.Correction) ([]byte, error) {
	return json.Marshal(CorrectionFrame{Ver: Version, Type: TypeCorrection, Correction: c})
}

// CastRejectFrame tells the originating client why a cast failed.
// RetryAtTick carries the cooldown expiry when the reason is a cooldown.
type CastRejectFrame struct {
	Ver         int    `json:"ver"`
	Type        string `json:"type"`
	Tick        uint64 `json:"tick"`
	Ability     string `json:"ability"`
	Reason      string `json:"reason"`
	RetryAtTick uint64 `json:"retryAtTick,omitempty"`
}

// EncodeCastReject renders an ability-rejection notice.
func EncodeCastReject(tick uint64, ability, reason string, retryAtTick uint64) ([]byte, error) {
	return json.Marshal(CastRejectFrame{
		Ver:         Version,
		Type:        TypeCastReject,
		Tick:        tick,
		Ability:     ability,
		Reason:      reason,
		RetryAtTick: retryAtTick,
	})
}

// JoinResponse is the HTTP join payload: the connection's identity, the
// shared timing constants a predicting client needs, and a keyframe of the
// world it just entered.
type JoinResponse struct {
	Ver                int            `json:"ver"`
	ID                 string         `json:"id"`
	EntityID           string         `json:"entityId"`
	TickRate           int            `json:"tickRate"`
	SnapshotEveryTicks int            `json:"snapshotEveryTicks"`
	HeartbeatMillis    int64          `json:"heartbeatMillis"`
	Snapshot           arena.Snapshot `json:"snapshot"`
}

// EncodeJoinResponse renders the join payload.
func EncodeJoinResponse(resp JoinResponse) ([]byte, error) {
	resp.Ver = Version
	return json.Marshal(resp)
}

// Schema reflects the wire protocol into a JSON schema document for client
// codegen and validation tooling. Each frame is reflected self-contained so
// the definitions read independently.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}

	frames := []struct {
		name  string
		value any
	}{
		{"clientMessage", new(ClientMessage)},
		{"inputAck", new(InputAckFrame)},
		{"inputReject", new(InputRejectFrame)},
		{"heartbeat", new(HeartbeatFrame)},
		{"snapshot", new(SnapshotFrame)},
		{"correction", new(CorrectionFrame)},
		{"castReject", new(CastRejectFrame)},
		{"joinResponse", new(JoinResponse)},
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Arena Wire Protocol",
		Description: fmt.Sprintf("Message frames exchanged over /ws and /join, protocol version %d.", Version),
		Definitions: jsonschema.Definitions{},
	}
	for _, frame := range frames {
		s := reflector.Reflect(frame.value)
		s.Version = ""
		root.Definitions[frame.name] = s
	}
	return root
}
