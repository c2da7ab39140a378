package archiverr

// Action names the archive operation an error was raised from.
type Action int8

const (
	Unknown Action = iota
	Save
	Load
	Delete
	Copy
	Rename
	Backup
	Restore
	Append
	Encode
	Decode
	Store
	Hydrate
)

func (a Action) String() string {
	actions := map[Action]string{
		Unknown: "unknown",
		Save:    "save",
		Load:    "load",
		Delete:  "delete",
		Copy:    "copy",
		Rename:  "rename",
		Backup:  "backup",
		Restore: "restore",
		Append:  "append",
		Encode:  "encode",
		Decode:  "decode",
		Store:   "store",
		Hydrate: "hydrate",
	}

	if str, ok := actions[a]; ok {
		return str
	}
	return "unknown"
}
