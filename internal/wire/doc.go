// Package wire defines the payloads exchanged with remote observers and the
// codecs used to encode them.
//
// Two codecs are available: JSON for human-readable topics and CBOR for
// compact payloads on constrained links. Both encode the same structs and
// use the same field names.
//
//	codec, err := wire.New(cfg.MQTT.PayloadFormat)
//	payload, err := codec.Marshal(wire.FromAnnouncement(a))
package wire
