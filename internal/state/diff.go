package state

// DiffKind names what a mutation changed.
type DiffKind int

const (
	DiffNone DiffKind = iota
	DiffNick
	DiffJoined
	DiffParted
	DiffMemberJoined
	DiffMemberUpdated
	DiffMemberLeft
	DiffMemberRenamed
	DiffNames
	DiffTopic
	DiffModes
	DiffUserModes
	DiffFeatures
	DiffCaps
)

var diffKindNames = map[DiffKind]string{
	DiffNone:          "none",
	DiffNick:          "nick",
	DiffJoined:        "joined",
	DiffParted:        "parted",
	DiffMemberJoined:  "member_joined",
	DiffMemberUpdated: "member_updated",
	DiffMemberLeft:    "member_left",
	DiffMemberRenamed: "member_renamed",
	DiffNames:         "names",
	DiffTopic:         "topic",
	DiffModes:         "modes",
	DiffUserModes:     "user_modes",
	DiffFeatures:      "features",
	DiffCaps:          "caps",
}

func (k DiffKind) String() string {
	if name, ok := diffKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Diff describes one applied mutation. Slices are owned by the Diff.
type Diff struct {
	Kind    DiffKind
	Channel string
	Nick    string
	OldNick string
	Modes   string
	Topic   string
	TopicBy string
	Changes []ModeChange
	Members []Member
	Keys    []string
}

// Changed reports whether the mutation had any effect.
func (d Diff) Changed() bool {
	return d.Kind != DiffNone
}
