package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/Jamesmykil253/MoBa-sub001/internal/hub"
	"github.com/Jamesmykil253/MoBa-sub001/internal/net/proto"
)

// readLoop consumes client messages until the socket dies. Payloads that do
// not decode are logged and skipped; only the hub's fatal faults terminate a
// connection early, and those surface here as a read error once the session
// closes the socket.
func (h *Handler) readLoop(connID string, sess *hub.Session, conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(connID, "read_failure")
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", connID, err)
			continue
		}

		switch msg.Type {
		case proto.TypeInput:
			h.handleInput(connID, sess, msg)
		case proto.TypeHeartbeat:
			now := time.Now()
			rtt, ok := h.hub.Heartbeat(connID, now, msg.SentAt)
			if !ok {
				continue
			}
			data, err := proto.EncodeHeartbeat(now, msg.SentAt, rtt)
			h.reply(connID, sess, data, err)
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, connID)
		}
	}
}

// handleInput stages one command and answers with an ack or a reject. A seq
// at or below the last acknowledged one is re-acked without staging, so a
// client retransmitting after a lost ack cannot double-apply. Commands sent
// without a seq are staged silently.
func (h *Handler) handleInput(connID string, sess *hub.Session, msg proto.ClientMessage) {
	if msg.Seq > 0 {
		if last := sess.LastCommandSeq(); last > 0 && msg.Seq <= last {
			data, err := proto.EncodeInputAck(msg.Seq, 0)
			h.reply(connID, sess, data, err)
			return
		}
	}

	cmd, ok, reason := h.hub.StageInput(connID, msg)
	if msg.Seq == 0 {
		return
	}
	if !ok {
		data, err := proto.EncodeInputReject(msg.Seq, reason, proto.RetryableReject(reason))
		h.reply(connID, sess, data, err)
		return
	}
	data, err := proto.EncodeInputAck(msg.Seq, cmd.ClientTick)
	h.reply(connID, sess, data, err)
	sess.StoreLastCommandSeq(msg.Seq)
}

// reply queues an encoded frame on the session's outbound pump. A full
// queue drops the frame; acks lost this way are recovered by the client's
// retransmit and the duplicate re-ack above.
func (h *Handler) reply(connID string, sess *hub.Session, data []byte, err error) {
	if err != nil {
		h.logger.Printf("failed to marshal reply for %s: %v", connID, err)
		return
	}
	sess.Send(data)
}
