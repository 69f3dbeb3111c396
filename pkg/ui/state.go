package ui

import (
	"sort"
	"sync"

	"github.com/storagebroker/service/pkg/types"
)

// Tab names the three panels the main view cycles through for the
// currently selected volume.
type Tab int

const (
	TabVolume Tab = iota
	TabUsage
	TabBtrfs
)

func (t Tab) String() string {
	switch t {
	case TabVolume:
		return "Volume"
	case TabUsage:
		return "Usage"
	case TabBtrfs:
		return "BTRFS"
	default:
		return "?"
	}
}

// State is the UI's in-memory view of the drive tree plus the
// currently active selection and tab, refreshed from the client and
// from signal notifications.
type State struct {
	mu sync.RWMutex

	disks   []types.Disk
	volumes map[string][]types.Volume // keyed by disk device

	selectedDevice string
	selectedVolume string
	activeTab      Tab

	operations map[string]types.ImageOperationStatus
}

func newState() *State {
	return &State{
		volumes:    make(map[string][]types.Volume),
		operations: make(map[string]types.ImageOperationStatus),
	}
}

func (s *State) setDisks(disks []types.Disk) {
	sort.Slice(disks, func(i, j int) bool { return disks[i].Device < disks[j].Device })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disks = disks
}

func (s *State) Disks() []types.Disk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Disk, len(s.disks))
	copy(out, s.disks)
	return out
}

func (s *State) setVolumes(device string, vols []types.Volume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes[device] = vols
}

func (s *State) Volumes(device string) []types.Volume {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volumes[device]
}

func (s *State) Select(device, volumePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedDevice = device
	s.selectedVolume = volumePath
}

func (s *State) Selected() (device, volumePath string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedDevice, s.selectedVolume
}

func (s *State) SetTab(t Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTab = t
}

func (s *State) CycleTab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTab = (s.activeTab + 1) % 3
	return s.activeTab
}

func (s *State) ActiveTab() Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTab
}

func (s *State) upsertOperation(status types.ImageOperationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[status.OperationID] = status
}

func (s *State) Operations() []types.ImageOperationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ImageOperationStatus, 0, len(s.operations))
	for _, op := range s.operations {
		out = append(out, op)
	}
	return out
}
