package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/types"
)

func sumSizes(segs []types.Segment) uint64 {
	var total uint64
	for _, s := range segs {
		total += s.Size
	}
	return total
}

// S1 — GPT segmentation with a leading reserved header and a trailing
// reserved tail.
func TestSegment_S1_GPT(t *testing.T) {
	diskSize := uint64(1_048_576_000)
	extents := []Extent{
		{ID: 0, Offset: 1_048_576, Size: 524_288_000},
		{ID: 1, Offset: 525_336_576, Size: 500_000_000},
	}
	usable := &Range{Start: 1_048_576, End: 1_047_527_424}

	res := Segment(diskSize, extents, usable)

	require.Empty(t, res.Anomalies)
	require.NotEmpty(t, res.Segments)

	assert.Equal(t, types.SegmentReserved, res.Segments[0].Kind)
	assert.EqualValues(t, 0, res.Segments[0].Offset)
	assert.EqualValues(t, 1_048_576, res.Segments[0].Size)

	// Second segment is partition 0, immediately after the reserved header.
	assert.Equal(t, types.SegmentPartition, res.Segments[1].Kind)
	require.NotNil(t, res.Segments[1].PartitionID)
	assert.Equal(t, 0, *res.Segments[1].PartitionID)
	assert.EqualValues(t, 1_048_576, res.Segments[1].Offset)

	last := res.Segments[len(res.Segments)-1]
	assert.Equal(t, types.SegmentReserved, last.Kind)
	assert.EqualValues(t, diskSize, last.Offset+last.Size)
}

// S2 — overlapping extents are flagged as anomalies.
func TestSegment_S2_Overlap(t *testing.T) {
	extents := []Extent{
		{ID: 0, Offset: 0, Size: 100},
		{ID: 1, Offset: 50, Size: 100},
	}
	res := Segment(1000, extents, nil)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, types.AnomalyOverlapsPrevious, res.Anomalies[0].Kind)
	assert.Equal(t, 1, res.Anomalies[0].PartitionID)
	assert.EqualValues(t, 100, res.Anomalies[0].PreviousEnd)

	var partitionCount int
	for _, s := range res.Segments {
		if s.Kind == types.SegmentPartition {
			partitionCount++
		}
	}
	assert.Equal(t, 1, partitionCount, "overlapping extent must not be emitted")

	last := res.Segments[len(res.Segments)-1]
	assert.Equal(t, types.SegmentFreeSpace, last.Kind)
	assert.EqualValues(t, 100, last.Offset)
	assert.EqualValues(t, 1000, last.Offset+last.Size)
}

func TestSegment_SumEqualsUsableSize_NoAnomalies(t *testing.T) {
	diskSize := uint64(10000)
	extents := []Extent{
		{ID: 0, Offset: 100, Size: 200},
		{ID: 1, Offset: 500, Size: 300},
	}
	res := Segment(diskSize, extents, nil)
	require.Empty(t, res.Anomalies)
	assert.Equal(t, diskSize, sumSizes(res.Segments))
}

func TestSegment_NoTwoPartitionsOverlap(t *testing.T) {
	diskSize := uint64(10000)
	extents := []Extent{
		{ID: 0, Offset: 100, Size: 200},
		{ID: 1, Offset: 500, Size: 300},
		{ID: 2, Offset: 250, Size: 100}, // overlaps id0's tail region
	}
	res := Segment(diskSize, extents, nil)

	var prevEnd uint64
	for _, s := range res.Segments {
		if s.Kind == types.SegmentPartition {
			assert.GreaterOrEqual(t, s.Offset, prevEnd)
			prevEnd = s.Offset + s.Size
		}
	}
}

func TestSegment_Idempotent(t *testing.T) {
	diskSize := uint64(10000)
	extents := []Extent{
		{ID: 0, Offset: 100, Size: 200},
		{ID: 1, Offset: 500, Size: 300},
	}
	first := Segment(diskSize, extents, nil)
	require.Empty(t, first.Anomalies)

	second := Segment(diskSize, first.AsExtents(), nil)
	require.Empty(t, second.Anomalies)
	assert.Equal(t, first.Segments, second.Segments)
}

func TestSegment_Anomaly_StartsPastDisk(t *testing.T) {
	res := Segment(1000, []Extent{{ID: 0, Offset: 1000, Size: 10}}, nil)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, types.AnomalyStartsPastDisk, res.Anomalies[0].Kind)
	for _, s := range res.Segments {
		assert.NotEqual(t, types.SegmentPartition, s.Kind)
	}
}

func TestSegment_Anomaly_EndPastDisk_ClampsAndEmitsPartition(t *testing.T) {
	res := Segment(1000, []Extent{{ID: 0, Offset: 900, Size: 200}}, nil)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, types.AnomalyEndPastDisk, res.Anomalies[0].Kind)

	var found bool
	for _, s := range res.Segments {
		if s.Kind == types.SegmentPartition {
			found = true
			assert.EqualValues(t, 900, s.Offset)
			assert.EqualValues(t, 100, s.Size) // clamped to disk_size
		}
	}
	assert.True(t, found)
}

func TestSegment_ExtentEndsExactlyAtDiskSize_NoAnomaly(t *testing.T) {
	res := Segment(1000, []Extent{{ID: 0, Offset: 900, Size: 100}}, nil)
	assert.Empty(t, res.Anomalies)
}

func TestSegment_ZeroSizeDisk(t *testing.T) {
	res := Segment(0, nil, nil)
	assert.Empty(t, res.Anomalies)
	assert.Empty(t, res.Segments)
}

func TestSegment_PartitionAtOffsetZeroSpansWholeDisk(t *testing.T) {
	res := Segment(1000, []Extent{{ID: 0, Offset: 0, Size: 1000}}, nil)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, types.SegmentPartition, res.Segments[0].Kind)
	assert.EqualValues(t, 1000, res.Segments[0].Size)
}

func TestSegment_EmptyExtentsWithUsableRange(t *testing.T) {
	res := Segment(1000, nil, &Range{Start: 100, End: 900})
	require.Len(t, res.Segments, 3)
	assert.Equal(t, types.SegmentReserved, res.Segments[0].Kind)
	assert.Equal(t, types.SegmentFreeSpace, res.Segments[1].Kind)
	assert.EqualValues(t, 100, res.Segments[1].Offset)
	assert.EqualValues(t, 800, res.Segments[1].Size)
	assert.Equal(t, types.SegmentReserved, res.Segments[2].Kind)
}

func TestSegment_EmptyExtentsNoUsableRange(t *testing.T) {
	res := Segment(1000, nil, nil)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, types.SegmentFreeSpace, res.Segments[0].Kind)
	assert.EqualValues(t, 1000, res.Segments[0].Size)
}
