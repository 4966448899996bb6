// Package wire defines the on-air formats of the mesh protocol.
//
// All formats are fixed width and packed without padding. Multi-byte
// integers are big-endian. Layouts:
//
//	object:             [building_id:2][object_type:1][x:2][y:2][z:2][properties:4]   13 bytes
//	packet header:      [source:2][destination:2][sequence:2][hop_count:1][type:1]     8 bytes
//	live-update:        object{1,19}
//	detail-chunk:       [object_id:2][chunk_id:2][chunk_type:1][data:0..242]
//	discovery:          [mode:1][object_count:2]
//	discovery-response: [mode:1]([node_id:2][hop_count:1]){0,82}
//	object-remove:      [object_id:2]{1,123}
//
// A whole frame never exceeds MaxFrameSize, the payload limit of LoRa-class radios.
package wire
