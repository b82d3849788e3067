package core

// bft_messages.go – wire framing helpers for the BFT miner's gossip
// messages. Proposal/vote/change-view traffic is JSON rather than the
// context-compressed codec: these are ephemeral network messages, never
// hashed or stored, so the spec's canonical-bytes requirement (which
// exists for content addressing and state determinism) doesn't apply.

import "encoding/json"

func decodeJSONInto(payload []byte, v interface{}) error {
	return json.Unmarshal(payload, v)
}

func encodeJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic("bft message must always json-encode: " + err.Error())
	}
	return b
}
