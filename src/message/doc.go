// Package message defines the envelopes that nodes exchange and the codec
// that turns them into lines of JSON.
//
// Every message on the wire is a single JSON object terminated by a newline:
//
//	{"src":"c1","dest":"n1","body":{"type":"echo","echo":"hi","msg_id":1}}
//
// The body is a tagged union. Its "type" field names the payload variant and
// the remaining fields, apart from "msg_id", belong to that variant. Each
// protocol owns a closed set of variants, expressed as a Codec built from the
// protocol's Kinds. Decoding is strict: an unknown type, or a variant missing
// one of its required fields, is a DecodeError.
//
// Requests carry an optional msg_id. Responses carry in_reply_to, which echoes
// the request's msg_id, or 1 when the request did not have one.
package message
