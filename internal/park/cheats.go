package park

import (
	"fmt"
	"sort"

	"parkrep/core/internal/stream"
)

// CheatType enumerates the toggles a player may flip outside normal play.
type CheatType uint32

const (
	CheatSandboxMode CheatType = iota
	CheatDisableClearanceChecks
	CheatDisableSupportLimits
	CheatFreezeWeather
	CheatBuildInPauseMode
	CheatIgnoreRideIntensity
	CheatUnlockAllPrices
	cheatCount
)

var cheatNames = map[CheatType]string{
	CheatSandboxMode:            "sandbox_mode",
	CheatDisableClearanceChecks: "disable_clearance_checks",
	CheatDisableSupportLimits:   "disable_support_limits",
	CheatFreezeWeather:          "freeze_weather",
	CheatBuildInPauseMode:       "build_in_pause_mode",
	CheatIgnoreRideIntensity:    "ignore_ride_intensity",
	CheatUnlockAllPrices:        "unlock_all_prices",
}

func (c CheatType) String() string {
	if name, ok := cheatNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cheat_%d", uint32(c))
}

// Valid reports whether the cheat is known.
func (c CheatType) Valid() bool { return c < cheatCount }

// Cheat returns the cheat value, zero when unset.
func (p *Park) Cheat(c CheatType) int32 { return p.cheats[c] }

// SetCheat stores a cheat value. Zero clears it.
func (p *Park) SetCheat(c CheatType, value int32) error {
	if !c.Valid() {
		return fmt.Errorf("cheat %d: %w", uint32(c), ErrInvalidValue)
	}
	if value == 0 {
		delete(p.cheats, c)
		return nil
	}
	p.cheats[c] = value
	return nil
}

// ExportCheats encodes the active cheats in ascending order.
func (p *Park) ExportCheats() ([]byte, error) {
	keys := make([]CheatType, 0, len(p.cheats))
	for c := range p.cheats {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	w := stream.NewWriter()
	w.U32(uint32(len(keys)))
	for _, c := range keys {
		w.U32(uint32(c))
		w.I32(p.cheats[c])
	}
	return w.Bytes(), w.Err()
}

// ImportCheats replaces the cheat table with an encoded one.
func (p *Park) ImportCheats(data []byte) error {
	r := stream.NewReader(data)
	count := r.U32()
	next := make(map[CheatType]int32, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		c := CheatType(r.U32())
		value := r.I32()
		if r.Err() == nil && !c.Valid() {
			return fmt.Errorf("import cheats: cheat %d: %w", uint32(c), ErrInvalidValue)
		}
		next[c] = value
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("import cheats: %w", err)
	}
	p.cheats = next
	return nil
}

// ExportParameters encodes the park parameters kept outside the park file.
func (p *Park) ExportParameters() ([]byte, error) {
	w := stream.NewWriter()
	w.I32(p.entranceFee)
	w.U32(p.flags)
	w.U16(p.maxGuests)
	return w.Bytes(), w.Err()
}

// ImportParameters restores parameters encoded by ExportParameters.
func (p *Park) ImportParameters(data []byte) error {
	r := stream.NewReader(data)
	fee := r.I32()
	flags := r.U32()
	maxGuests := r.U16()
	if err := r.Err(); err != nil {
		return fmt.Errorf("import parameters: %w", err)
	}
	p.entranceFee = fee
	p.flags = flags
	p.maxGuests = maxGuests
	return nil
}
