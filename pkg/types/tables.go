package types

// Standard table names.
const (
	GuestsTable = "guests"
	TasksTable  = "tasks"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	GuestsTable,
	TasksTable,
}

// Guest fields.
const (
	GuestName       = "name"
	GuestCompanions = "companions"
	GuestRelation   = "relation"
	GuestComments   = "comments"
	GuestRSVP       = "rsvp"
)

// RSVP options.
const (
	RSVPYes     = "Yes"
	RSVPNo      = "No"
	RSVPPending = "Pending"
)

// Task fields.
const (
	TaskItem   = "item"
	TaskStatus = "status"
	TaskCost   = "cost"
	TaskNotes  = "notes"
)

// Default task status options. Deployments override them from config.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In progress"
	StatusCompleted  = "Completed"
)

// DefaultStatusOptions is the default option list of the tasks status field.
var DefaultStatusOptions = []string{StatusPending, StatusInProgress, StatusCompleted}

// GuestSchema returns the schema of the guest list.
func GuestSchema() Schema {
	return Schema{
		Name: GuestsTable,
		Key:  GuestName,
		Fields: []Field{
			{Name: GuestName, Type: ValueTypeText},
			{Name: GuestCompanions, Type: ValueTypeInteger},
			{Name: GuestRelation, Type: ValueTypeText},
			{Name: GuestComments, Type: ValueTypeLongText},
			{Name: GuestRSVP, Type: ValueTypeEnum, Options: []string{RSVPYes, RSVPNo, RSVPPending}, Default: RSVPPending},
		},
	}
}

// TaskSchema returns the schema of the preparations checklist.
func TaskSchema() Schema {
	return Schema{
		Name: TasksTable,
		Key:  TaskItem,
		Fields: []Field{
			{Name: TaskItem, Type: ValueTypeText},
			{Name: TaskStatus, Type: ValueTypeEnum, Options: append([]string(nil), DefaultStatusOptions...)},
			{Name: TaskCost, Type: ValueTypeDecimal},
			{Name: TaskNotes, Type: ValueTypeLongText},
		},
	}
}

// StandardSchema returns the schema for a standard table name.
// Returns ErrTableNotFound if the name is not a standard table.
func StandardSchema(name string) (Schema, error) {
	switch name {
	case GuestsTable:
		return GuestSchema(), nil
	case TasksTable:
		return TaskSchema(), nil
	default:
		return Schema{}, ErrTableNotFound
	}
}

// DefaultTaskItems are the preparation items a new checklist starts with.
var DefaultTaskItems = []string{
	"Bride's bouquet",
	"Bride's dress",
	"Makeup and hair",
	"Groom's suit",
	"Tie",
	"Pin",
	"Socks",
	"Cake",
	"Photographer",
	"Notary",
	"Rings",
	"Save the dates",
	"Invitations with favors",
	"Venue",
	"Decoration",
	"Cake knife",
	"Pen for the signing",
	"Hotel room",
}
