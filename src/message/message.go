package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mosaicnetworks/gossipnode/src/common"
	"github.com/pkg/errors"
)

// Payload is one variant of a protocol's message body.
type Payload interface {
	// Type returns the wire tag of the variant, e.g. "broadcast_ok".
	Type() string
}

// Body is the "body" object of an Envelope: a payload plus an optional
// msg_id.
type Body struct {
	MsgID   *uint64
	Payload Payload
}

// Envelope is a routed message.
type Envelope struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
	Body Body   `json:"body"`
}

// NewEnvelope ...
func NewEnvelope(src, dest string, msgID *uint64, payload Payload) Envelope {
	return Envelope{
		Src:  src,
		Dest: dest,
		Body: Body{
			MsgID:   msgID,
			Payload: payload,
		},
	}
}

// Type returns the wire tag of the envelope's payload, or an empty string if
// there is none.
func (e Envelope) Type() string {
	if e.Body.Payload == nil {
		return ""
	}
	return e.Body.Payload.Type()
}

// ID returns a pointer to a copy of id. It is a convenience for building
// envelopes with a msg_id.
func ID(id uint64) *uint64 {
	return &id
}

// InReplyTo returns the value a response must carry in its in_reply_to
// field. Requests without a msg_id are answered with in_reply_to 1.
// XXX this cannot be told apart from a request whose msg_id really was 1.
func InReplyTo(msgID *uint64) uint64 {
	if msgID == nil {
		return 1
	}
	return *msgID
}

// MarshalJSON flattens the payload's fields next to "type" and "msg_id". Nil
// slices and maps are written as [] and {} so that a decoder never sees null
// for a collection.
func (b Body) MarshalJSON() ([]byte, error) {
	if b.Payload == nil {
		return nil, fmt.Errorf("body has no payload")
	}

	raw, err := marshal(b.Payload)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrapf(err, "payload %s is not a JSON object", b.Payload.Type())
	}
	for name, empty := range nilCollections(b.Payload) {
		if string(fields[name]) == "null" {
			fields[name] = empty
		}
	}

	typ, err := marshal(b.Payload.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = typ

	if b.MsgID != nil {
		fields["msg_id"] = json.RawMessage(fmt.Sprintf("%d", *b.MsgID))
	} else {
		fields["msg_id"] = json.RawMessage("null")
	}

	return marshal(fields)
}

// nilCollections maps the JSON name of every nil slice or map field of p to
// the empty value it should be written as.
func nilCollections(p Payload) map[string]json.RawMessage {
	v := reflect.Indirect(reflect.ValueOf(p))
	if v.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]json.RawMessage)
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		if f.PkgPath != "" {
			continue
		}

		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		switch fv := v.Field(i); {
		case fv.Kind() == reflect.Slice && fv.IsNil():
			res[name] = json.RawMessage("[]")
		case fv.Kind() == reflect.Map && fv.IsNil():
			res[name] = json.RawMessage("{}")
		}
	}
	return res
}

// Kind describes one payload variant of a protocol.
type Kind struct {
	// Type is the wire tag.
	Type string
	// New returns an empty payload to decode into.
	New func() Payload
	// Required lists the body fields that must be present and non-null.
	Required []string
}

// Codec decodes the closed set of variants spoken by one protocol.
type Codec struct {
	kinds map[string]Kind
}

// NewCodec creates a Codec that recognises the given kinds. The quit kind is
// always recognised.
func NewCodec(kinds ...Kind) *Codec {
	c := &Codec{
		kinds: make(map[string]Kind, len(kinds)+1),
	}
	c.kinds[QuitKind.Type] = QuitKind
	for _, k := range kinds {
		c.kinds[k.Type] = k
	}
	return c
}

// Types returns the sorted list of wire tags the codec recognises.
func (c *Codec) Types() []string {
	res := make([]string, 0, len(c.kinds))
	for t := range c.kinds {
		res = append(res, t)
	}
	sort.Strings(res)
	return res
}

// Encode encodes an envelope as a single newline-terminated line of JSON.
func (c *Codec) Encode(e Envelope) ([]byte, error) {
	return Encode(e)
}

// Decode parses one line into an Envelope. Any failure is returned as a
// DecodeError.
func (c *Codec) Decode(line []byte) (Envelope, error) {
	var raw struct {
		Src  *string         `json:"src"`
		Dest *string         `json:"dest"`
		Body json.RawMessage `json:"body"`
	}

	if err := json.Unmarshal(line, &raw); err != nil {
		return Envelope{}, decodeErr(err)
	}
	if raw.Src == nil {
		return Envelope{}, decodeErr(fmt.Errorf("missing src"))
	}
	if raw.Dest == nil {
		return Envelope{}, decodeErr(fmt.Errorf("missing dest"))
	}
	if len(raw.Body) == 0 || string(raw.Body) == "null" {
		return Envelope{}, decodeErr(fmt.Errorf("missing body"))
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw.Body, &fields); err != nil {
		return Envelope{}, decodeErr(errors.Wrap(err, "body"))
	}

	typRaw, ok := fields["type"]
	if !ok {
		return Envelope{}, decodeErr(fmt.Errorf("missing body type"))
	}
	var typ string
	if err := json.Unmarshal(typRaw, &typ); err != nil {
		return Envelope{}, decodeErr(errors.Wrap(err, "body type"))
	}

	kind, ok := c.kinds[typ]
	if !ok {
		return Envelope{}, decodeErr(fmt.Errorf("unknown type %q", typ))
	}

	for _, f := range kind.Required {
		v, ok := fields[f]
		if !ok || string(v) == "null" {
			return Envelope{}, decodeErr(fmt.Errorf("%s is missing field %q", typ, f))
		}
	}

	var msgID *uint64
	if v, ok := fields["msg_id"]; ok && string(v) != "null" {
		var id uint64
		if err := json.Unmarshal(v, &id); err != nil {
			return Envelope{}, decodeErr(errors.Wrap(err, "msg_id"))
		}
		msgID = &id
	}

	payload := kind.New()
	if err := json.Unmarshal(raw.Body, payload); err != nil {
		return Envelope{}, decodeErr(errors.Wrapf(err, "%s body", typ))
	}

	return NewEnvelope(*raw.Src, *raw.Dest, msgID, payload), nil
}

// PeekType returns the body type of a line without decoding the payload. It
// only fails if the line is not an envelope with a string body type.
func PeekType(line []byte) (string, error) {
	var raw struct {
		Body struct {
			Type *string `json:"type"`
		} `json:"body"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return "", decodeErr(err)
	}
	if raw.Body.Type == nil {
		return "", decodeErr(fmt.Errorf("missing body type"))
	}
	return *raw.Body.Type, nil
}

// Encode encodes an envelope as a single newline-terminated line of JSON.
func Encode(e Envelope) ([]byte, error) {
	b, err := marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "encoding envelope")
	}
	return append(b, '\n'), nil
}

func decodeErr(err error) error {
	return common.NewNodeErr(common.DecodeError, "decode", err)
}

// marshal is json.Marshal without HTML escaping and without the trailing
// newline that json.Encoder appends.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
