// Package protocol defines the messages exchanged between the bridge, the
// native host, and attached UI surfaces.
//
// # Envelope
//
// Every message is a JSON object with a type and optional data:
//
//	{"type": "typeDevices", "data": {"<id>": {...device...}}}
//
// The same envelope travels over the host channel (native messaging frames) and
// over the WebSocket connections used by UI surfaces.
//
// # Catalogue
//
//	type              direction                      data
//	typeDevices       host→bridge, bridge→host       id→Device map / none (request)
//	typeDeviceUpdate  host→bridge                    Device
//	typeVersion       bridge→host, host→bridge       none (request) / version string
//	typeShare         surface→host                   {target, url}
//	typeStatus        bridge→surfaces                {type, key, ...}
//	typeClearStatus   bridge→surfaces                {key}
//	typeError         host→bridge (legacy)           string
//
// Decode turns an envelope into one of a closed set of Payload values. Types
// outside the catalogue decode to Unknown and are relayed untouched, so newer
// hosts can introduce messages without breaking older bridges.
//
// # Framing
//
// The host channel uses native messaging framing: a 32-bit length in native
// byte order followed by that many bytes of UTF-8 JSON. Encoder and Decoder
// implement it. Frames from the host are limited to MaxFrameSize.
package protocol
