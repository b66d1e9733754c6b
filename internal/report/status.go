package report

import "strings"

type Status string

const (
	StatusIntake        Status = "Schadenaufnahme"
	StatusLeakDetection Status = "Leckortung"
	StatusDrying        Status = "Trocknung"
	StatusRemediation   Status = "Instandsetzung"
	StatusClosed        Status = "Abgeschlossen"
)

// Stages lists the working stages in order. Closed is terminal and not a stage.
var Stages = []Status{StatusIntake, StatusLeakDetection, StatusDrying, StatusRemediation}

func (s Status) Valid() bool {
	return s == StatusClosed || s.Stage() >= 0
}

// Stage returns the position in Stages or -1.
func (s Status) Stage() int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

func (s Status) Closed() bool { return s == StatusClosed }

type Role string

const (
	RoleResident   Role = "Mieter"
	RoleOwner      Role = "Eig."
	RoleCaretaker  Role = "HW"
	RoleManagement Role = "Verw."
	RoleContractor Role = "Handw."
	RoleOther      Role = "Sonst."
)

var Roles = []Role{RoleResident, RoleOwner, RoleCaretaker, RoleManagement, RoleContractor, RoleOther}

var roleAliases = map[string]Role{
	"mieter":         RoleResident,
	"mieterin":       RoleResident,
	"bewohner":       RoleResident,
	"resident":       RoleResident,
	"tenant":         RoleResident,
	"eig.":           RoleOwner,
	"eig":            RoleOwner,
	"eigentümer":     RoleOwner,
	"eigentuemer":    RoleOwner,
	"owner":          RoleOwner,
	"hw":             RoleCaretaker,
	"hauswart":       RoleCaretaker,
	"hausmeister":    RoleCaretaker,
	"caretaker":      RoleCaretaker,
	"verw.":          RoleManagement,
	"verw":           RoleManagement,
	"verwaltung":     RoleManagement,
	"bewirtschafter": RoleManagement,
	"management":     RoleManagement,
	"handw.":         RoleContractor,
	"handw":          RoleContractor,
	"handwerker":     RoleContractor,
	"techniker":      RoleContractor,
	"contractor":     RoleContractor,
	"sonst.":         RoleOther,
	"sonst":          RoleOther,
	"sonstige":       RoleOther,
	"other":          RoleOther,
}

// ParseRole maps free text onto the fixed role set. Empty input stays empty;
// anything unrecognised becomes RoleOther.
func ParseRole(raw string) Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" || IsPlaceholder(key) {
		return ""
	}
	if role, ok := roleAliases[key]; ok {
		return role
	}
	return RoleOther
}
