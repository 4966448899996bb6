// Package snapshot persists a read-only view of a node: its live objects and
// the completeness summaries of their detail. Snapshots let other processes
// read the state of a node and let the node warm start after a restart.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spacemeshos/go-scale"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/codec"
	"github.com/meshsync/go-meshsync/common/types"
	"github.com/meshsync/go-meshsync/detail"
)

// Version of the snapshot format.
const Version = 1

const (
	maxObjects   = 1 << 16
	maxSummaries = 1 << 16
)

var ErrVersion = errors.New("unsupported snapshot version")

// Snapshot is the persisted view of a node.
type Snapshot struct {
	Version   uint32
	Node      types.NodeID
	Taken     time.Time
	Objects   []types.BuildingObject
	Summaries []detail.Summary
}

func (s *Snapshot) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact32(enc, s.Version)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact16(enc, uint16(s.Node))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, uint64(s.Taken.UnixNano()))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, s.Objects, maxObjects)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, s.Summaries, maxSummaries)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *Snapshot) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		if field != Version {
			return total, fmt.Errorf("%w: %d", ErrVersion, field)
		}
		s.Version = field
	}
	{
		field, n, err := scale.DecodeCompact16(dec)
		if err != nil {
			return total, err
		}
		total += n
		s.Node = types.NodeID(field)
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		s.Taken = time.Unix(0, int64(field))
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[types.BuildingObject](dec, maxObjects)
		if err != nil {
			return total, err
		}
		total += n
		s.Objects = field
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[detail.Summary](dec, maxSummaries)
		if err != nil {
			return total, err
		}
		total += n
		s.Summaries = field
	}
	return total, nil
}

// Write stores snap at path. The file is replaced atomically.
func Write(fs afero.Fs, path string, snap *Snapshot) error {
	if snap.Version == 0 {
		snap.Version = Version
	}
	buf, err := codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Read loads the snapshot at path.
func Read(fs afero.Fs, path string) (*Snapshot, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var snap Snapshot
	if err := codec.Decode(buf, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &snap, nil
}

// Source takes a snapshot of live state.
type Source interface {
	Snapshot() *Snapshot
}

// Run writes a snapshot of source every interval until ctx is canceled and
// once more on the way out.
func Run(ctx context.Context, logger *zap.Logger, fs afero.Fs, path string, interval time.Duration,
	clock clockwork.Clock, source Source,
) {
	logger.Info("snapshots enabled", zap.String("path", path), zap.Duration("interval", interval))
	write := func() {
		snap := source.Snapshot()
		if err := Write(fs, path, snap); err != nil {
			logger.Error("failed to write snapshot", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Debug("snapshot written",
			zap.Int("objects", len(snap.Objects)),
			zap.Int("summaries", len(snap.Summaries)),
		)
	}
	for {
		select {
		case <-ctx.Done():
			write()
			return
		case <-clock.After(interval):
			write()
		}
	}
}
