package snapshot

// RoomPatch is the optimistic mutation applied to a room after a successful
// command. Nil fields are left untouched.
type RoomPatch struct {
	SetpointMode *string
	SetpointFP   *string
	Temperature  *float64
}

// ModulePatch is the optimistic mutation applied to a module after a
// successful command. Nil fields are left untouched.
type ModulePatch struct {
	On         *bool
	Brightness *int
}

// HomePatch is the optimistic mutation applied to a home after a successful
// whole-home command.
type HomePatch struct {
	ThermMode *string
}

// PatchRoom shallow-merges the patch into an existing room. Patching an
// unknown id is a no-op and returns false; a patch never creates an entity.
func (s *Snapshot) PatchRoom(id string, patch RoomPatch) bool {
	room, ok := s.Rooms[id]
	if !ok {
		return false
	}
	if patch.SetpointMode != nil {
		room.SetpointMode = *patch.SetpointMode
	}
	if patch.SetpointFP != nil {
		room.SetpointFP = *patch.SetpointFP
	}
	if patch.Temperature != nil {
		room.SetpointTemperature = patch.Temperature
	}
	s.Rooms[id] = room
	return true
}

// PatchModule shallow-merges the patch into an existing module.
func (s *Snapshot) PatchModule(id string, patch ModulePatch) bool {
	module, ok := s.Modules[id]
	if !ok {
		return false
	}
	if patch.On != nil {
		module.On = patch.On
	}
	if patch.Brightness != nil {
		module.Brightness = patch.Brightness
	}
	s.Modules[id] = module
	return true
}

// PatchHome shallow-merges the patch into an existing home.
func (s *Snapshot) PatchHome(id string, patch HomePatch) bool {
	home, ok := s.Homes[id]
	if !ok {
		return false
	}
	if patch.ThermMode != nil {
		home.ThermMode = *patch.ThermMode
	}
	s.Homes[id] = home
	return true
}
