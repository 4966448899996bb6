package detail

import (
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/meshsync/go-meshsync/common/types"
)

// maxSeenChunks bounds the chunk ids of one category on decoding.
const maxSeenChunks = 1 << 16

func (t *Summary) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact16(enc, uint16(t.Object))
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, acc := range t.Accumulated {
		n, err := scale.EncodeCompact32(enc, acc)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, seen := range t.Seen {
		n, err := scale.EncodeCompact32(enc, uint32(len(seen)))
		if err != nil {
			return total, err
		}
		total += n
		for _, chunk := range seen {
			n, err := scale.EncodeCompact16(enc, uint16(chunk))
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	return total, nil
}

func (t *Summary) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeCompact16(dec)
		if err != nil {
			return total, err
		}
		total += n
		t.Object = types.ObjectID(field)
	}
	for i := range t.Accumulated {
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		t.Accumulated[i] = field
	}
	for i := range t.Seen {
		count, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		if count > maxSeenChunks {
			return total, fmt.Errorf("too many chunk ids: %d", count)
		}
		t.Seen[i] = nil
		if count > 0 {
			t.Seen[i] = make([]types.ChunkID, 0, count)
		}
		for range count {
			field, n, err := scale.DecodeCompact16(dec)
			if err != nil {
				return total, err
			}
			total += n
			t.Seen[i] = append(t.Seen[i], types.ChunkID(field))
		}
	}
	return total, nil
}
