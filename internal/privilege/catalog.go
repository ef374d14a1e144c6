package privilege

import "sort"

// Privilege is an atomic (resource, action) permission unit.
type Privilege struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// String renders the canonical "resource.action" form.
func (p Privilege) String() string {
	return p.Resource + "." + p.Action
}

// Platform privileges.
var (
	RoomCreate = Privilege{Resource: "room", Action: "create"}
	RoomRead   = Privilege{Resource: "room", Action: "read"}
	RoomUpdate = Privilege{Resource: "room", Action: "update"}
	RoomDelete = Privilege{Resource: "room", Action: "delete"}

	PresetCreate = Privilege{Resource: "preset", Action: "create"}
	PresetRead   = Privilege{Resource: "preset", Action: "read"}
	PresetUpdate = Privilege{Resource: "preset", Action: "update"}
	PresetDelete = Privilege{Resource: "preset", Action: "delete"}

	LabelCreate = Privilege{Resource: "label", Action: "create"}
	LabelRead   = Privilege{Resource: "label", Action: "read"}
	LabelUpdate = Privilege{Resource: "label", Action: "update"}
	LabelDelete = Privilege{Resource: "label", Action: "delete"}

	RecordingRead   = Privilege{Resource: "recording", Action: "read"}
	RecordingDelete = Privilege{Resource: "recording", Action: "delete"}

	UserCreate = Privilege{Resource: "user", Action: "create"}
	UserRead   = Privilege{Resource: "user", Action: "read"}
	UserUpdate = Privilege{Resource: "user", Action: "update"}
	UserDelete = Privilege{Resource: "user", Action: "delete"}

	RoleRead   = Privilege{Resource: "role", Action: "read"}
	RoleUpdate = Privilege{Resource: "role", Action: "update"}

	SettingRead   = Privilege{Resource: "setting", Action: "read"}
	SettingUpdate = Privilege{Resource: "setting", Action: "update"}
)

// Built-in role identifiers. Role membership is fixed at deploy time.
const (
	RoleAdmin    = "admin"
	RoleLecturer = "lecturer"
	RoleViewer   = "viewer"
)

// catalog maps each built-in role to its granted privileges. Duplicates are
// tolerated here and removed during resolver construction.
var catalog = map[string][]Privilege{
	RoleAdmin: {
		RoomCreate, RoomRead, RoomUpdate, RoomDelete,
		PresetCreate, PresetRead, PresetUpdate, PresetDelete,
		LabelCreate, LabelRead, LabelUpdate, LabelDelete,
		RecordingRead, RecordingDelete,
		UserCreate, UserRead, UserUpdate, UserDelete,
		RoleRead, RoleUpdate,
		SettingRead, SettingUpdate,
	},
	RoleLecturer: {
		RoomCreate, RoomRead, RoomUpdate, RoomDelete,
		PresetCreate, PresetRead, PresetUpdate, PresetDelete,
		LabelCreate, LabelRead, LabelUpdate, LabelDelete,
		RecordingRead, RecordingDelete,
	},
	RoleViewer: {
		RoomRead,
	},
}

// ListSystemPrivileges returns every privilege the platform recognises,
// de-duplicated and in stable order: resource name, then action name.
func ListSystemPrivileges() []Privilege {
	seen := make(map[Privilege]struct{})
	var all []Privilege
	for _, granted := range catalog {
		for _, p := range granted {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Resource != all[j].Resource {
			return all[i].Resource < all[j].Resource
		}
		return all[i].Action < all[j].Action
	})
	return all
}

// GroupSystemPrivileges returns the catalog keyed by resource with actions
// sorted, the shape the admin UI consumes.
func GroupSystemPrivileges() map[string][]string {
	grouped := make(map[string][]string)
	for _, p := range ListSystemPrivileges() {
		grouped[p.Resource] = append(grouped[p.Resource], p.Action)
	}
	return grouped
}
