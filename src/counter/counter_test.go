package counter

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"testing"
	"time"

	"github.com/mosaicnetworks/gossipnode/src/common"
	"github.com/mosaicnetworks/gossipnode/src/message"
	"github.com/mosaicnetworks/gossipnode/src/node"
	"github.com/mosaicnetworks/gossipnode/src/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var members = []string{"n1", "n2", "n3"}

func newTestNodes(t *testing.T) map[string]*Node {
	nodes := make(map[string]*Node)
	for _, id := range members {
		nodes[id] = NewNode(
			node.Identity{ID: id, Members: members},
			time.Second,
			common.NewTestEntry(t, common.TestLogLevel),
		)
	}
	return nodes
}

func request(t *testing.T, n *Node, msgID uint64, p message.Payload) string {
	var out bytes.Buffer
	ev := node.NewMessageEvent(message.NewEnvelope("c1", n.id.ID, message.ID(msgID), p))
	if err := n.Handle(ev, message.NewWriter(&out)); err != nil {
		t.Fatalf("%s: %v", p.Type(), err)
	}
	return out.String()
}

func read(t *testing.T, n *Node) uint64 {
	var out bytes.Buffer
	ev := node.NewMessageEvent(message.NewEnvelope("c1", n.id.ID, message.ID(99), &Read{}))
	if err := n.Handle(ev, message.NewWriter(&out)); err != nil {
		t.Fatalf("read: %v", err)
	}

	e, err := Codec.Decode(bytes.TrimSpace(out.Bytes()))
	if err != nil {
		t.Fatalf("decoding read_ok: %v", err)
	}
	return e.Body.Payload.(*ReadOk).Value
}

// tick makes every node push its value and delivers the current messages.
func tick(t *testing.T, nodes map[string]*Node) {
	var out bytes.Buffer
	w := message.NewWriter(&out)

	for _, id := range members {
		if err := nodes[id].Handle(node.TickEvent, w); err != nil {
			t.Fatalf("%s tick: %v", id, err)
		}
	}

	r := bufio.NewReader(&out)
	for {
		line, err := message.ReadLine(r)
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("reading output: %v", err)
		}

		e, err := Codec.Decode(line)
		if err != nil {
			t.Fatalf("decoding %s: %v", line, err)
		}
		if err := nodes[e.Dest].Handle(node.NewMessageEvent(e), message.NewWriter(io.Discard)); err != nil {
			t.Fatalf("%s: %v", e.Dest, err)
		}
	}
}

func TestAggregationExample(t *testing.T) {
	nodes := newTestNodes(t)

	reply := request(t, nodes["n1"], 1, &Add{Delta: 5})
	expected := `{"src":"n1","dest":"c1","body":{"in_reply_to":1,"msg_id":1,"type":"add_ok"}}` + "\n"
	if reply != expected {
		t.Fatalf("reply should be %s, not %s", expected, reply)
	}
	request(t, nodes["n1"], 2, &Add{Delta: 3})

	if v := read(t, nodes["n2"]); v != 0 {
		t.Fatalf("n2 should read 0 before any tick, not %d", v)
	}

	tick(t, nodes)

	if v, _ := nodes["n2"].Known("n1"); v != 8 {
		t.Fatalf("n2 should know n1 at 8, not %d", v)
	}
	for _, id := range members {
		if v := read(t, nodes[id]); v != 8 {
			t.Fatalf("%s should read 8, not %d", id, v)
		}
	}
}

func TestReadReply(t *testing.T) {
	nodes := newTestNodes(t)
	request(t, nodes["n3"], 1, &Add{Delta: 4})

	reply := request(t, nodes["n3"], 2, &Read{})
	expected := `{"src":"n3","dest":"c1","body":{"in_reply_to":2,"msg_id":2,"type":"read_ok","value":4}}` + "\n"
	if reply != expected {
		t.Fatalf("reply should be %s, not %s", expected, reply)
	}
}

func TestTickSendsCurrentToPeers(t *testing.T) {
	nodes := newTestNodes(t)
	request(t, nodes["n2"], 1, &Add{Delta: 6})

	var out bytes.Buffer
	if err := nodes["n2"].Handle(node.TickEvent, message.NewWriter(&out)); err != nil {
		t.Fatalf("tick: %v", err)
	}

	expected := `{"src":"n2","dest":"n1","body":{"msg_id":null,"type":"current","value":6}}` + "\n" +
		`{"src":"n2","dest":"n3","body":{"msg_id":null,"type":"current","value":6}}` + "\n"
	if out.String() != expected {
		t.Fatalf("tick should send:\n%s\nnot:\n%s", expected, out.String())
	}
}

func TestMonotonicity(t *testing.T) {
	nodes := newTestNodes(t)

	deltas := []struct {
		node  string
		delta uint64
	}{
		{"n1", 1}, {"n2", 10}, {"n3", 0}, {"n1", 4}, {"n3", 7}, {"n2", 2},
	}

	last := make(map[string]uint64)
	for i, d := range deltas {
		request(t, nodes[d.node], uint64(i+1), &Add{Delta: d.delta})
		tick(t, nodes)

		for _, id := range members {
			v := read(t, nodes[id])
			if v < last[id] {
				t.Fatalf("step %d: %s read went down from %d to %d", i, id, last[id], v)
			}
			last[id] = v
		}
	}

	for _, id := range members {
		if last[id] != 24 {
			t.Fatalf("%s should finally read 24, not %d", id, last[id])
		}
	}
}

func TestUnknownPeerIgnored(t *testing.T) {
	nodes := newTestNodes(t)
	n := nodes["n1"]

	ev := node.NewMessageEvent(message.NewEnvelope("n9", "n1", nil, &Current{Value: 100}))
	if err := n.Handle(ev, message.NewWriter(io.Discard)); err != nil {
		t.Fatalf("current from unknown node should not fail: %v", err)
	}

	if _, ok := n.Known("n9"); ok {
		t.Fatalf("unknown sender should not be tracked")
	}
	if len(n.peers) != 2 {
		t.Fatalf("peers should still be n2 and n3, not %v", n.peers)
	}
	if v := read(t, n); v != 0 {
		t.Fatalf("read should be 0, not %d", v)
	}

	// A node never tracks itself.
	ev = node.NewMessageEvent(message.NewEnvelope("n1", "n1", nil, &Current{Value: 3}))
	n.Handle(ev, message.NewWriter(io.Discard))
	if v := read(t, n); v != 0 {
		t.Fatalf("current from self should be ignored, read %d", v)
	}
}

func TestAcknowledgementsIgnored(t *testing.T) {
	nodes := newTestNodes(t)

	for _, p := range []message.Payload{&AddOk{InReplyTo: 1}, &ReadOk{Value: 5, InReplyTo: 2}} {
		if out := request(t, nodes["n1"], 3, p); out != "" {
			t.Fatalf("%s should be ignored, got %s", p.Type(), out)
		}
	}
	if nodes["n1"].Value() != 0 {
		t.Fatalf("acknowledgements should not change the counter")
	}
}

func TestTerminate(t *testing.T) {
	nodes := newTestNodes(t)
	var out bytes.Buffer

	if err := nodes["n1"].Handle(node.TerminateEvent, message.NewWriter(&out)); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("terminate should not write anything, got %s", out.String())
	}
}

func TestAddSaturates(t *testing.T) {
	nodes := newTestNodes(t)

	request(t, nodes["n1"], 1, &Add{Delta: math.MaxUint64 - 1})
	request(t, nodes["n1"], 2, &Add{Delta: 5})

	if l := nodes["n1"].Local(); l != math.MaxUint64 {
		t.Fatalf("local value should stop at MaxUint64, not %d", l)
	}

	request(t, nodes["n2"], 1, &Add{Delta: 7})
	tick(t, nodes)

	for _, id := range members {
		if v := read(t, nodes[id]); v != math.MaxUint64 {
			t.Fatalf("%s should read MaxUint64, not %d", id, v)
		}
	}
}

func TestValueGauge(t *testing.T) {
	nodes := newTestNodes(t)

	request(t, nodes["n1"], 1, &Add{Delta: 2})
	request(t, nodes["n3"], 1, &Add{Delta: 9})
	tick(t, nodes)

	if v := testutil.ToFloat64(telemetry.CounterValue.WithLabelValues("n2")); v != 11 {
		t.Fatalf("n2 gauge should be 11, not %v", v)
	}
}
