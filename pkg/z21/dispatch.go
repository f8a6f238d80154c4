// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import "errors"

// Dispatch decodes one inbound record into an Event. It never returns nil and
// never panics; malformed input becomes InvalidMessage and well-formed input
// of an unknown kind becomes UnrecognizedMessage.
//
// raw must hold exactly one record. Use SplitRecords first for datagrams
// that carry several.
func Dispatch(raw []byte) Event {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return invalidMessage(raw, err)
	}

	ev, err := decodeHeaderEvent(env.Header, env.Payload)
	switch {
	case errors.Is(err, errNoVariant):
		return UnrecognizedMessage{Raw: cloneBytes(raw)}
	case err != nil:
		return invalidMessage(raw, err)
	}
	return ev
}

func invalidMessage(raw []byte, reason error) InvalidMessage {
	return InvalidMessage{Reason: reason, Raw: cloneBytes(raw)}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
