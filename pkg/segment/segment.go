// Package segment implements the disk-layout segmentation algorithm: a
// pure function turning a disk size, a set of partition extents, and an
// optional usable range into an ordered, contiguous list of free space,
// reserved space, and partition segments, plus any anomalies found in
// malformed input.
//
// No other package in this module calls it; the UI's volume bar builds
// its segments from volume offsets on its own (pkg/ui's
// volumesToSegments).
package segment

import (
	"sort"

	"github.com/storagebroker/service/pkg/types"
)

// Extent is one input partition: an id plus its offset/size within the disk.
type Extent struct {
	ID     int
	Offset uint64
	Size   uint64
}

// Range is an optional usable address range, e.g. a GPT disk's
// [start_usable, end_usable) band excluding MBR/header and backup tables.
type Range struct {
	Start uint64
	End   uint64
}

// Result is segmentation's output: the ordered segment list plus any
// anomalies recorded while walking the extents.
type Result struct {
	Segments  []types.Segment
	Anomalies []types.Anomaly
}

// Segment computes the ordered, contiguous segment list for a disk of
// diskSize bytes given its (possibly unsorted, possibly overlapping)
// partition extents and an optional usable range: sort by offset,
// flag overlaps as anomalies, fill every gap (leading, trailing, and
// between partitions) with a reserved or free segment, and tag
// reserved segments that fall outside the usable range.
func Segment(diskSize uint64, extents []Extent, usable *Range) Result {
	sorted := make([]Extent, len(extents))
	copy(sorted, extents)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	var res Result

	startUsable := uint64(0)
	endUsable := diskSize
	if usable != nil {
		startUsable = usable.Start
		endUsable = usable.End
	}

	cursor := startUsable
	if startUsable > 0 {
		res.Segments = append(res.Segments, types.Segment{
			Kind: types.SegmentReserved, Offset: 0, Size: startUsable,
		})
	}

	for _, ext := range sorted {
		if ext.Offset < cursor {
			prevEnd := cursor
			res.Anomalies = append(res.Anomalies, types.Anomaly{
				Kind: types.AnomalyOverlapsPrevious, PartitionID: ext.ID, PreviousEnd: prevEnd,
			})
			end := ext.Offset + ext.Size
			if end > cursor {
				cursor = end
			}
			continue
		}
		if ext.Offset >= diskSize {
			res.Anomalies = append(res.Anomalies, types.Anomaly{
				Kind: types.AnomalyStartsPastDisk, PartitionID: ext.ID,
			})
			continue
		}
		if ext.Offset > cursor {
			res.Segments = append(res.Segments, types.Segment{
				Kind: types.SegmentFreeSpace, Offset: cursor, Size: ext.Offset - cursor,
			})
		}
		end := ext.Offset + ext.Size
		if end > diskSize {
			res.Anomalies = append(res.Anomalies, types.Anomaly{
				Kind: types.AnomalyEndPastDisk, PartitionID: ext.ID,
			})
			end = diskSize
		}
		id := ext.ID
		res.Segments = append(res.Segments, types.Segment{
			Kind: types.SegmentPartition, Offset: ext.Offset, Size: end - ext.Offset, PartitionID: &id,
		})
		cursor = end
	}

	if cursor < endUsable {
		res.Segments = append(res.Segments, types.Segment{
			Kind: types.SegmentFreeSpace, Offset: cursor, Size: endUsable - cursor,
		})
		cursor = endUsable
	}
	if endUsable < diskSize {
		res.Segments = append(res.Segments, types.Segment{
			Kind: types.SegmentReserved, Offset: endUsable, Size: diskSize - endUsable,
		})
	}

	return res
}

// AsExtents converts a Result's Partition segments back into Extents, for
// the idempotency property: re-feeding a clean result's partitions through
// Segment must reproduce the same partition layout.
func (r Result) AsExtents() []Extent {
	var out []Extent
	for _, s := range r.Segments {
		if s.Kind == types.SegmentPartition && s.PartitionID != nil {
			out = append(out, Extent{ID: *s.PartitionID, Offset: s.Offset, Size: s.Size})
		}
	}
	return out
}
