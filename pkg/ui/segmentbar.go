package ui

import (
	"strings"

	"github.com/storagebroker/service/pkg/types"
)

// segmentGlyph is the block character drawn for one column of the
// segment bar, chosen per SegmentKind so free space, reserved space,
// and partitions remain visually distinct in a plain-text terminal.
func segmentGlyph(kind types.SegmentKind) rune {
	switch kind {
	case types.SegmentFreeSpace:
		return '·'
	case types.SegmentReserved:
		return '▒'
	case types.SegmentPartition:
		return '█'
	default:
		return '?'
	}
}

// renderSegmentBar draws a fixed-width, segment-accurate bar: each
// segment's share of width is proportional to its share of the drive's
// total addressable size, with every segment guaranteed at least one
// column so zero-width segments never vanish from the legend.
func renderSegmentBar(segments []types.Segment, width int) string {
	if width <= 0 || len(segments) == 0 {
		return ""
	}

	var total uint64
	for _, seg := range segments {
		total += seg.Size
	}
	if total == 0 {
		return strings.Repeat(string(segmentGlyph(types.SegmentFreeSpace)), width)
	}

	var b strings.Builder
	used := 0
	for i, seg := range segments {
		cols := int(uint64(width) * seg.Size / total)
		if cols < 1 {
			cols = 1
		}
		if i == len(segments)-1 {
			cols = width - used
			if cols < 1 {
				cols = 1
			}
		}
		if used+cols > width {
			cols = width - used
		}
		if cols <= 0 {
			continue
		}
		b.WriteString(strings.Repeat(string(segmentGlyph(seg.Kind)), cols))
		used += cols
	}
	return b.String()
}

// segmentLegend returns the one-line key explaining the bar's glyphs.
func segmentLegend() string {
	return string(segmentGlyph(types.SegmentPartition)) + " partition   " +
		string(segmentGlyph(types.SegmentReserved)) + " reserved   " +
		string(segmentGlyph(types.SegmentFreeSpace)) + " free"
}

// volumesToSegments derives a segment list from a disk's flat volume
// set for bars drawn from already-fetched client data, without a
// second round trip to a dedicated segmentation endpoint: each volume
// becomes a Partition segment at its offset/size, and the gaps between
// them (and before the first/after the last) become FreeSpace.
func volumesToSegments(diskSize uint64, vols []types.Volume) []types.Segment {
	segments := make([]types.Segment, 0, len(vols)*2+1)
	var cursor uint64
	for _, v := range vols {
		if v.Offset > cursor {
			segments = append(segments, types.Segment{
				Kind:   types.SegmentFreeSpace,
				Offset: cursor,
				Size:   v.Offset - cursor,
			})
		}
		segments = append(segments, types.Segment{
			Kind:   types.SegmentPartition,
			Offset: v.Offset,
			Size:   v.Size,
		})
		cursor = v.Offset + v.Size
	}
	if diskSize > cursor {
		segments = append(segments, types.Segment{
			Kind:   types.SegmentFreeSpace,
			Offset: cursor,
			Size:   diskSize - cursor,
		})
	}
	return segments
}
