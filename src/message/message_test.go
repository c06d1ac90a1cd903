package message

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/mosaicnetworks/gossipnode/src/common"
)

type ping struct {
	Values []int64             `json:"values"`
	Note   string              `json:"note,omitempty"`
	Routes map[string][]string `json:"routes,omitempty"`
}

func (ping) Type() string { return "ping" }

var pingKind = Kind{
	Type:     "ping",
	New:      func() Payload { return &ping{} },
	Required: []string{"values"},
}

func testCodec() *Codec {
	return NewCodec(InitKind, InitOkKind, pingKind)
}

func TestEncodeInit(t *testing.T) {
	e := NewEnvelope("n1", "c2", nil, &Init{
		NodeID:  "n3",
		NodeIDs: []string{"n1", "n2", "n3"},
	})

	line, err := Encode(e)
	if err != nil {
		t.Fatal(err)
	}

	expected := `{"src":"n1","dest":"c2","body":{"msg_id":null,"node_id":"n3","node_ids":["n1","n2","n3"],"type":"init"}}` + "\n"
	if string(line) != expected {
		t.Fatalf("line should be\n%s\nnot\n%s", expected, line)
	}
}

func TestEncodeDoesNotEscapeHTML(t *testing.T) {
	line, err := Encode(NewEnvelope("a", "b", ID(3), &ping{Values: []int64{}, Note: "<&>"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(line), `"note":"<&>"`) {
		t.Fatalf("note should be written verbatim: %s", line)
	}
}

func TestRoundTrip(t *testing.T) {
	codec := testCodec()

	cases := []Envelope{
		NewEnvelope("c1", "n1", ID(1), &Init{NodeID: "n1", NodeIDs: []string{"n1"}}),
		NewEnvelope("n1", "c1", nil, &InitOk{InReplyTo: 1}),
		NewEnvelope("n1", "n2", nil, &ping{Values: []int64{}}),
		NewEnvelope("n1", "n2", ID(0), &ping{Values: []int64{-4, 0, 42}, Note: "x"}),
		NewEnvelope("n1", "n2", ID(1<<40), &ping{
			Values: []int64{7},
			Routes: map[string][]string{"n1": {"n2"}, "n2": {}},
		}),
		NewEnvelope("c1", "n1", nil, &Quit{}),
	}

	for i, e := range cases {
		line, err := codec.Encode(e)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if line[len(line)-1] != '\n' || bytes.Count(line, []byte("\n")) != 1 {
			t.Fatalf("case %d: encoded envelope should be exactly one line: %q", i, line)
		}

		got, err := codec.Decode(line)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if !reflect.DeepEqual(e, got) {
			t.Fatalf("case %d: round trip should give %#v, not %#v", i, e, got)
		}
	}
}

func TestRoundTripNilCollections(t *testing.T) {
	codec := testCodec()

	cases := []struct {
		sent     Envelope
		line     string
		received Envelope
	}{
		{
			NewEnvelope("n1", "n2", nil, &ping{}),
			`{"src":"n1","dest":"n2","body":{"msg_id":null,"type":"ping","values":[]}}`,
			NewEnvelope("n1", "n2", nil, &ping{Values: []int64{}}),
		},
		{
			NewEnvelope("n1", "n2", ID(3), &ping{Values: []int64{1}, Note: "x"}),
			`{"src":"n1","dest":"n2","body":{"msg_id":3,"note":"x","type":"ping","values":[1]}}`,
			NewEnvelope("n1", "n2", ID(3), &ping{Values: []int64{1}, Note: "x"}),
		},
		{
			NewEnvelope("c1", "n1", ID(1), &Init{NodeID: "n1"}),
			`{"src":"c1","dest":"n1","body":{"msg_id":1,"node_id":"n1","node_ids":[],"type":"init"}}`,
			NewEnvelope("c1", "n1", ID(1), &Init{NodeID: "n1", NodeIDs: []string{}}),
		},
	}

	for i, c := range cases {
		line, err := codec.Encode(c.sent)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if string(line) != c.line+"\n" {
			t.Fatalf("case %d: encoded line should be %s, not %s", i, c.line, line)
		}

		got, err := codec.Decode(line)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if !reflect.DeepEqual(c.received, got) {
			t.Fatalf("case %d: round trip should give %#v, not %#v", i, c.received, got)
		}

		again, err := codec.Encode(got)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if !bytes.Equal(line, again) {
			t.Fatalf("case %d: re-encoding should give %s, not %s", i, line, again)
		}
	}
}

func TestDecodeStrict(t *testing.T) {
	codec := testCodec()

	cases := map[string]string{
		"not json":        `{"src":`,
		"missing src":     `{"dest":"n1","body":{"type":"ping","values":[]}}`,
		"missing dest":    `{"src":"n1","body":{"type":"ping","values":[]}}`,
		"missing body":    `{"src":"c1","dest":"n1"}`,
		"null body":       `{"src":"c1","dest":"n1","body":null}`,
		"missing type":    `{"src":"c1","dest":"n1","body":{"values":[]}}`,
		"unknown type":    `{"src":"c1","dest":"n1","body":{"type":"pong"}}`,
		"missing field":   `{"src":"c1","dest":"n1","body":{"type":"ping"}}`,
		"null field":      `{"src":"c1","dest":"n1","body":{"type":"ping","values":null}}`,
		"wrong kind":      `{"src":"c1","dest":"n1","body":{"type":"ping","values":"x"}}`,
		"negative msg_id": `{"src":"c1","dest":"n1","body":{"type":"ping","values":[],"msg_id":-1}}`,
	}

	for name, line := range cases {
		_, err := codec.Decode([]byte(line))
		if err == nil {
			t.Fatalf("%s: Decode should fail", name)
		}
		if !common.IsNodeErr(err, common.DecodeError) {
			t.Fatalf("%s: error should be a DecodeError, not %v", name, err)
		}
	}
}

func TestDecodeWithoutMsgID(t *testing.T) {
	e, err := testCodec().Decode([]byte(`{"src":"n2","dest":"n1","body":{"type":"ping","values":[1,2]}}`))
	if err != nil {
		t.Fatal(err)
	}
	if e.Body.MsgID != nil {
		t.Fatalf("msg_id should be nil, not %d", *e.Body.MsgID)
	}
	if e.Type() != "ping" {
		t.Fatalf("type should be ping, not %s", e.Type())
	}
}

func TestQuitIsAlwaysKnown(t *testing.T) {
	e, err := NewCodec().Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"quit"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Body.Payload.(*Quit); !ok {
		t.Fatalf("payload should be *Quit, not %T", e.Body.Payload)
	}
}

func TestInReplyTo(t *testing.T) {
	if got := InReplyTo(nil); got != 1 {
		t.Fatalf("InReplyTo(nil) should be 1, not %d", got)
	}
	if got := InReplyTo(ID(17)); got != 17 {
		t.Fatalf("InReplyTo(17) should be 17, not %d", got)
	}
}

func TestWriterReply(t *testing.T) {
	var buf bytes.Buffer
	var seen []string
	w := NewWriter(&buf, func(e Envelope) { seen = append(seen, e.Type()) })

	req := NewEnvelope("c1", "n1", ID(5), &Init{NodeID: "n1", NodeIDs: []string{"n1"}})
	if err := w.Reply(req, &InitOk{InReplyTo: InReplyTo(req.Body.MsgID)}); err != nil {
		t.Fatal(err)
	}

	expected := `{"src":"n1","dest":"c1","body":{"in_reply_to":5,"msg_id":5,"type":"init_ok"}}` + "\n"
	if buf.String() != expected {
		t.Fatalf("reply should be\n%s\nnot\n%s", expected, buf.String())
	}
	if !reflect.DeepEqual(seen, []string{"init_ok"}) {
		t.Fatalf("observer should have seen [init_ok], not %v", seen)
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriterTransportError(t *testing.T) {
	w := NewWriter(brokenWriter{})
	err := w.Send(NewEnvelope("n1", "c1", nil, &Quit{}))
	if !common.IsNodeErr(err, common.TransportError) {
		t.Fatalf("error should be a TransportError, not %v", err)
	}
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("one\n\n  \ntwo\nthree"))

	for _, expected := range []string{"one", "two", "three"} {
		line, err := ReadLine(r)
		if err != nil {
			t.Fatal(err)
		}
		if string(line) != expected {
			t.Fatalf("line should be %q, not %q", expected, line)
		}
	}

	if _, err := ReadLine(r); err != io.EOF {
		t.Fatalf("err should be io.EOF, not %v", err)
	}
}

func TestPeekType(t *testing.T) {
	typ, err := PeekType([]byte(`{"src":"c1","dest":"n1","body":{"type":"echo","echo":"x"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if typ != "echo" {
		t.Fatalf("type should be echo, not %s", typ)
	}

	if _, err := PeekType([]byte(`{"src":"c1","dest":"n1","body":{}}`)); !common.IsNodeErr(err, common.DecodeError) {
		t.Fatalf("a body without type should be a DecodeError, not %v", err)
	}
}
